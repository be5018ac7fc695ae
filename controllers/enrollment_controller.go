package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadflow/models"
	"leadflow/utils"
)

type EnrollmentController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewEnrollmentController(db *gorm.DB, logger *log.Logger) *EnrollmentController {
	return &EnrollmentController{
		DB:     db,
		Logger: logger,
	}
}

type createEnrollmentRequest struct {
	LeadID uint `json:"lead_id"`
}

// CreateEnrollment adds a lead to an active sequence. The enrollment and
// the pending execution for the first step are created in one
// transaction; from there the poller takes over.
func (ec *EnrollmentController) CreateEnrollment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	sequenceID := c.Params("id")

	var req createEnrollmentRequest
	if err := c.BodyParser(&req); err != nil || req.LeadID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "lead_id is required",
		})
	}

	var sequence models.Sequence
	if err := ec.DB.Where("id = ? AND user_id = ?", sequenceID, userID).First(&sequence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}
	if sequence.Status != models.SequenceStatusActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Leads can only be enrolled into an active sequence",
		})
	}

	var lead models.Lead
	if err := ec.DB.Where("id = ? AND user_id = ?", req.LeadID, userID).First(&lead).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}

	// One live run per lead per sequence.
	var existing int64
	if err := ec.DB.Model(&models.Enrollment{}).
		Where("sequence_id = ? AND lead_id = ? AND status IN ?",
			sequence.ID, lead.ID,
			[]string{models.EnrollmentStatusActive, models.EnrollmentStatusPaused}).
		Count(&existing).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check existing enrollments",
		})
	}
	if existing > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Lead is already enrolled in this sequence",
		})
	}

	var firstStep models.SequenceStep
	if err := ec.DB.Where("sequence_id = ?", sequence.ID).
		Order("order_position ASC").
		First(&firstStep).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Sequence has no steps",
		})
	}

	var enrollment models.Enrollment
	err := ec.DB.Transaction(func(tx *gorm.DB) error {
		enrollment = models.Enrollment{
			SequenceID: sequence.ID,
			LeadID:     lead.ID,
			Status:     models.EnrollmentStatusActive,
		}
		if err := tx.Create(&enrollment).Error; err != nil {
			return err
		}

		execution := models.StepExecution{
			EnrollmentID: enrollment.ID,
			StepID:       firstStep.ID,
			Status:       models.ExecutionStatusPending,
			ScheduledAt:  time.Now(),
		}
		return tx.Create(&execution).Error
	})
	if err != nil {
		ec.Logger.Printf("Failed to enroll lead %d in sequence %d: %v", lead.ID, sequence.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create enrollment",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(enrollment)
}

// PauseEnrollment stops further automated contact for an enrollment
func (ec *EnrollmentController) PauseEnrollment(c *fiber.Ctx) error {
	return ec.transition(c, models.EnrollmentStatusActive, models.EnrollmentStatusPaused)
}

// ResumeEnrollment re-activates a paused enrollment; its pending
// executions become due again on the next poll
func (ec *EnrollmentController) ResumeEnrollment(c *fiber.Ctx) error {
	return ec.transition(c, models.EnrollmentStatusPaused, models.EnrollmentStatusActive)
}

func (ec *EnrollmentController) transition(c *fiber.Ctx, from, to string) error {
	userID := c.Locals("userID").(uint)
	enrollmentID := c.Params("id")

	var enrollment models.Enrollment
	err := ec.DB.
		Joins("JOIN sequences ON sequences.id = enrollments.sequence_id").
		Where("enrollments.id = ? AND sequences.user_id = ?", enrollmentID, userID).
		First(&enrollment).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Enrollment not found",
		})
	}

	if enrollment.Status != from {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Enrollment is not " + from,
		})
	}

	enrollment.Status = to
	if err := ec.DB.Save(&enrollment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update enrollment",
		})
	}

	return c.JSON(enrollment)
}

// ListStuckEnrollments surfaces enrollments that are still active but
// have a failed execution and nothing scheduled — dead in practice until
// an operator intervenes.
func (ec *EnrollmentController) ListStuckEnrollments(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var stuck []models.Enrollment
	err := ec.DB.Raw(`
        SELECT e.* FROM enrollments e
        JOIN sequences s ON s.id = e.sequence_id
        WHERE s.user_id = ?
        AND e.status = ?
        AND e.deleted_at IS NULL
        AND EXISTS (
            SELECT 1 FROM step_executions x
            WHERE x.enrollment_id = e.id AND x.status = ?
        )
        AND NOT EXISTS (
            SELECT 1 FROM step_executions x
            WHERE x.enrollment_id = e.id AND x.status IN (?, ?)
        )
    `, userID, models.EnrollmentStatusActive, models.ExecutionStatusFailed,
		models.ExecutionStatusPending, models.ExecutionStatusClaimed).
		Scan(&stuck).Error
	if err != nil {
		ec.Logger.Printf("Failed to list stuck enrollments: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list stuck enrollments",
		})
	}

	return c.JSON(utils.SuccessResponse(stuck))
}
