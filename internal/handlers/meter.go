package handlers

import (
	"context"
	"errors"
	"net/http"

	"meter-backend/internal/imaging"
	"meter-backend/internal/logging"
	"meter-backend/internal/models"
	"meter-backend/internal/repository"
	"meter-backend/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MeterService is what the meter endpoints need from the service layer.
type MeterService interface {
	ListMeters(ctx context.Context) ([]models.Meter, error)
	CreateMeter(ctx context.Context, req models.CreateMeterRequest) (*models.Meter, error)
}

// ListMetersHandler returns every meter with its images, newest first
func ListMetersHandler(meterService MeterService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		meters, err := meterService.ListMeters(c.Context())
		if err != nil {
			requestLogger(c, logger).Error("failed to list meters", zap.Error(err))
			return failed(c, http.StatusInternalServerError, "Could Not Load Meter Data")
		}
		return c.JSON(models.Response{
			Status:  models.StatusSuccess,
			Message: "Meter Data Found",
			Data:    meters,
		})
	}
}

// CreateMeterHandler validates a submission and stores the meter with its images
func CreateMeterHandler(meterService MeterService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CreateMeterRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return failed(c, http.StatusBadRequest, "Invalid Request Body")
			}
		}

		meter, err := meterService.CreateMeter(c.Context(), req)
		if err != nil {
			var vErr *services.ValidationError
			switch {
			case errors.As(err, &vErr):
				return failed(c, http.StatusBadRequest, vErr.Message)
			case errors.Is(err, repository.ErrMeterNumberExists):
				return failed(c, http.StatusConflict, "Meter Number Already Exists")
			case errors.Is(err, imaging.ErrDecode):
				return failed(c, http.StatusBadRequest, "Invalid Image Data")
			default:
				requestLogger(c, logger).Error("failed to create meter",
					zap.Stringer("meter_number", req.MeterNumber),
					zap.Error(err),
				)
				return failed(c, http.StatusInternalServerError, "Could Not Save Meter Data")
			}
		}

		return c.Status(http.StatusCreated).JSON(models.Response{
			Status:  models.StatusSuccess,
			Message: "Meter Data Created",
			Data:    meter,
		})
	}
}

// requestLogger tags logger with the id set by the requestid middleware, if any.
func requestLogger(c *fiber.Ctx, logger *zap.Logger) *zap.Logger {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return logging.WithRequestID(logger, id)
	}
	return logger
}

func failed(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(models.Response{
		Status:  models.StatusFailed,
		Message: message,
	})
}

// ErrorHandler renders errors that escape a handler, fiber.Error included,
// in the same envelope as the API responses.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fErr *fiber.Error
		if errors.As(err, &fErr) {
			status = fErr.Code
			message = fErr.Message
		} else {
			requestLogger(c, logger).Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return failed(c, status, message)
	}
}
