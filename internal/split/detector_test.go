package split

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

var sessionStart = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	sent []Notification
	err  error
}

func (n *recordingNotifier) NotifySplit(_ context.Context, payload Notification) error {
	n.sent = append(n.sent, payload)
	return n.err
}

func TestMilestoneCrossings(t *testing.T) {
	notes := &recordingNotifier{}
	d := NewDetector("session-1", UnitKilometers, 70, notes)
	ctx := context.Background()

	// 0 -> 0.5 -> 1.2 -> 2.3 km must produce splits exactly at the 1.0 and
	// 2.0 crossings.
	if rec := d.CheckForMilestone(ctx, 0, sessionStart, 0, false, 0); rec != nil {
		t.Fatalf("no split at 0 km, got %+v", rec)
	}
	if rec := d.CheckForMilestone(ctx, 500, sessionStart, 300, false, 0); rec != nil {
		t.Fatalf("no split at 0.5 km, got %+v", rec)
	}

	first := d.CheckForMilestone(ctx, 1200, sessionStart, 700, false, 12)
	if first == nil || first.Index != 1 {
		t.Fatalf("expected split 1 at 1.2 km, got %+v", first)
	}
	if first.DurationSec != 700 {
		t.Fatalf("first split duration from session start, got %v", first.DurationSec)
	}
	if first.ElevationGainM != 12 {
		t.Fatalf("first split carries the full gain so far, got %v", first.ElevationGainM)
	}

	// Still inside the second unit.
	if rec := d.CheckForMilestone(ctx, 1700, sessionStart, 1000, false, 15); rec != nil {
		t.Fatalf("no split at 1.7 km, got %+v", rec)
	}

	second := d.CheckForMilestone(ctx, 2300, sessionStart, 1400, false, 20)
	if second == nil || second.Index != 2 {
		t.Fatalf("expected split 2 at 2.3 km, got %+v", second)
	}
	if second.DurationSec != 700 {
		t.Fatalf("second split duration since first split, got %v", second.DurationSec)
	}
	if second.ElevationGainM != 8 {
		t.Fatalf("second split gain is the delta, got %v", second.ElevationGainM)
	}

	splits := d.Splits()
	if len(splits) != 2 || splits[0].Index != 1 || splits[1].Index != 2 {
		t.Fatalf("expected ordered splits 1,2: %+v", splits)
	}
	if len(notes.sent) != 2 || notes.sent[1].SplitIndex != 2 || !notes.sent[1].IsMetric {
		t.Fatalf("unexpected notifications %+v", notes.sent)
	}
}

func TestCaloriesMetTiers(t *testing.T) {
	d := NewDetector("session-1", UnitKilometers, 70, nil)
	ctx := context.Background()

	// 1 km in 9 minutes: MET 6.5, calories = 6.5 * 70 * (9/60) = 68.25.
	rec := d.CheckForMilestone(ctx, 1000, sessionStart, 540, false, 0)
	if rec == nil {
		t.Fatalf("expected split")
	}
	if math.Abs(rec.Calories-68.25) > 1e-9 {
		t.Fatalf("expected 68.25 kcal, got %v", rec.Calories)
	}

	// 1 km in 7 minutes: MET 8.0.
	rec = d.CheckForMilestone(ctx, 2000, sessionStart, 540+420, false, 0)
	want := 8.0 * 70 * (420.0 / 3600)
	if math.Abs(rec.Calories-want) > 1e-9 {
		t.Fatalf("expected %v kcal, got %v", want, rec.Calories)
	}

	// 1 km in 15 minutes: MET 5.0.
	rec = d.CheckForMilestone(ctx, 3000, sessionStart, 540+420+900, false, 0)
	want = 5.0 * 70 * (900.0 / 3600)
	if math.Abs(rec.Calories-want) > 1e-9 {
		t.Fatalf("expected %v kcal, got %v", want, rec.Calories)
	}
}

func TestPausedIsNoOp(t *testing.T) {
	d := NewDetector("session-1", UnitKilometers, 70, nil)
	if rec := d.CheckForMilestone(context.Background(), 1500, sessionStart, 600, true, 0); rec != nil {
		t.Fatalf("paused session must not emit splits, got %+v", rec)
	}
	if len(d.Splits()) != 0 {
		t.Fatalf("paused session recorded a split")
	}
}

func TestNotifierFailureKeepsRecord(t *testing.T) {
	notes := &recordingNotifier{err: errors.New("wearable offline")}
	d := NewDetector("session-1", UnitKilometers, 70, notes)

	rec := d.CheckForMilestone(context.Background(), 1000, sessionStart, 600, false, 0)
	if rec == nil {
		t.Fatalf("delivery failure must not invalidate the split")
	}
	if len(d.Splits()) != 1 {
		t.Fatalf("split must be recorded despite notifier error")
	}
}

func TestMileUnit(t *testing.T) {
	d := NewDetector("session-1", UnitMiles, 80, &recordingNotifier{})
	ctx := context.Background()

	if rec := d.CheckForMilestone(ctx, 1500, sessionStart, 900, false, 0); rec != nil {
		t.Fatalf("1.5 km is under a mile, got %+v", rec)
	}
	rec := d.CheckForMilestone(ctx, 1700, sessionStart, 1000, false, 0)
	if rec == nil || rec.Unit != "mi" {
		t.Fatalf("expected mile split, got %+v", rec)
	}
}

func TestNegativeElevationDeltaClamped(t *testing.T) {
	d := NewDetector("session-1", UnitKilometers, 70, nil)
	ctx := context.Background()

	d.CheckForMilestone(ctx, 1000, sessionStart, 600, false, 30)
	rec := d.CheckForMilestone(ctx, 2000, sessionStart, 1200, false, 25)
	if rec == nil || rec.ElevationGainM != 0 {
		t.Fatalf("negative gain delta must clamp to zero, got %+v", rec)
	}
}

func TestReset(t *testing.T) {
	d := NewDetector("session-1", UnitKilometers, 70, nil)
	d.CheckForMilestone(context.Background(), 1000, sessionStart, 600, false, 0)
	d.Reset()
	if len(d.Splits()) != 0 {
		t.Fatalf("reset should drop splits")
	}
	// Indices restart from 1 after reset.
	rec := d.CheckForMilestone(context.Background(), 1000, sessionStart, 600, false, 0)
	if rec == nil || rec.Index != 1 {
		t.Fatalf("expected fresh index 1, got %+v", rec)
	}
	d.Reset()
	d.Reset()
}
