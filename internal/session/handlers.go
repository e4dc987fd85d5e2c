package session

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/orourkera/go-ruck-yourself-sub010/internal/trajectory"
)

// RegisterRoutes mounts the session lifecycle API. All routes assume the
// JWT middleware already ran; the authenticated user owns the session.
func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/", func(c *fiber.Ctx) error {
		var settings Settings
		if err := c.BodyParser(&settings); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if uid, ok := c.Locals("user_id").(string); ok {
			settings.UserID = uid
		}
		if settings.BodyWeightKg <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "body_weight_kg required")
		}
		sess, err := svc.Start(c.Context(), settings)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	})

	r.Post("/:id/points", func(c *fiber.Ctx) error {
		var p trajectory.Point
		if err := c.BodyParser(&p); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		res, err := svc.AddPoint(c.Context(), c.Params("id"), p)
		if err != nil {
			return mapErr(err)
		}
		return c.JSON(res)
	})

	r.Post("/:id/heartrate", func(c *fiber.Ctx) error {
		var req struct {
			Bpm int `json:"bpm"`
		}
		if err := c.BodyParser(&req); err != nil || req.Bpm <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "bpm required")
		}
		if err := svc.UpdateHeartRate(c.Params("id"), req.Bpm); err != nil {
			return mapErr(err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Post("/:id/pause", func(c *fiber.Ctx) error {
		if err := svc.Pause(c.Params("id")); err != nil {
			return mapErr(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/resume", func(c *fiber.Ctx) error {
		if err := svc.Resume(c.Params("id")); err != nil {
			return mapErr(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:id/summary", func(c *fiber.Ctx) error {
		sum, err := svc.Summary(c.Params("id"))
		if err != nil {
			return mapErr(err)
		}
		return c.JSON(sum)
	})

	r.Get("/:id/splits", func(c *fiber.Ctx) error {
		splits, err := svc.Splits(c.Params("id"))
		if err != nil {
			return mapErr(err)
		}
		return c.JSON(splits)
	})

	r.Post("/:id/end", func(c *fiber.Ctx) error {
		sum, err := svc.End(c.Context(), c.Params("id"))
		if err != nil {
			return mapErr(err)
		}
		return c.JSON(sum)
	})
}

func mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
