package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/surflamp/surf-lamp-processor/internal/models"
)

// SchedulerControl is the scheduler surface the ops API drives.
type SchedulerControl interface {
	TriggerNow() bool
	LastResult() *models.CycleResult
	Status() map[string]interface{}
}

// SourceReporter exposes the orchestrator's source bookkeeping.
type SourceReporter interface {
	LastGoodSources() map[string]string
}

type Handler struct {
	scheduler SchedulerControl
	sources   SourceReporter
	locations []string
	logger    *zap.Logger
}

func NewHandler(scheduler SchedulerControl, sources SourceReporter, locations []string, logger *zap.Logger) *Handler {
	return &Handler{
		scheduler: scheduler,
		sources:   sources,
		locations: locations,
		logger:    logger,
	}
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now(),
		"uptime":    time.Since(startTime).String(),
	})
}

// GetStatus handles GET /api/v1/status
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	resp := fiber.Map{
		"scheduler":         h.scheduler.Status(),
		"last_good_sources": h.sources.LastGoodSources(),
	}
	if last := h.scheduler.LastResult(); last != nil {
		persisted, skippedEmpty, failed := last.Counts()
		resp["last_cycle"] = last
		resp["last_cycle_counts"] = fiber.Map{
			"persisted":     persisted,
			"skipped_empty": skippedEmpty,
			"failed":        failed,
		}
	}
	return c.JSON(resp)
}

// TriggerRun handles POST /api/v1/run
func (h *Handler) TriggerRun(c *fiber.Ctx) error {
	h.logger.Info("Manual cycle requested over the API")

	if !h.scheduler.TriggerNow() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A processing cycle is already running",
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
	})
}

// GetLocations handles GET /api/v1/locations
func (h *Handler) GetLocations(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"locations": h.locations,
	})
}

var startTime = time.Now()
