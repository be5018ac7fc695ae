package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadflow/engine"
	"leadflow/models"
)

type ExecutionController struct {
	DB     *gorm.DB
	Poller *engine.Poller
	Logger *log.Logger
}

func NewExecutionController(db *gorm.DB, poller *engine.Poller, logger *log.Logger) *ExecutionController {
	return &ExecutionController{
		DB:     db,
		Poller: poller,
		Logger: logger,
	}
}

// ProcessDue triggers one poll over the due executions. Safe to call
// while the background worker runs; the claim guard prevents
// double-processing. Returns how many executions were claimed.
func (xc *ExecutionController) ProcessDue(c *fiber.Ctx) error {
	processed, err := xc.Poller.ProcessDue(c.Context())
	if err != nil {
		xc.Logger.Printf("Manual poll failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":           "Processing aborted",
			"processed_count": processed,
		})
	}

	return c.JSON(fiber.Map{
		"processed_count": processed,
	})
}

// ListExecutions returns the full execution audit trail of an enrollment
func (xc *ExecutionController) ListExecutions(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	enrollmentID := c.Params("id")

	var enrollment models.Enrollment
	err := xc.DB.
		Joins("JOIN sequences ON sequences.id = enrollments.sequence_id").
		Where("enrollments.id = ? AND sequences.user_id = ?", enrollmentID, userID).
		First(&enrollment).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Enrollment not found",
		})
	}

	var executions []models.StepExecution
	if err := xc.DB.Where("enrollment_id = ?", enrollment.ID).
		Order("scheduled_at ASC").
		Find(&executions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list executions",
		})
	}

	return c.JSON(fiber.Map{
		"enrollment": enrollment,
		"executions": executions,
	})
}
