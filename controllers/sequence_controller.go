package controller

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadflow/models"
	"leadflow/utils"
)

type SequenceController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	validate *validator.Validate
}

func NewSequenceController(db *gorm.DB, logger *log.Logger) *SequenceController {
	return &SequenceController{
		DB:       db,
		Logger:   logger,
		validate: validator.New(),
	}
}

type createSequenceRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description"`
}

// CreateSequence creates a new draft sequence
func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req createSequenceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := sc.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": err.Error(),
		})
	}

	sequence := models.Sequence{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Status:      models.SequenceStatusDraft,
	}

	if err := sc.DB.Create(&sequence).Error; err != nil {
		sc.Logger.Printf("Failed to create sequence: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create sequence",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(sequence)
}

type addStepRequest struct {
	OrderPosition int    `json:"order_position" validate:"required,gt=0"`
	Kind          string `json:"kind" validate:"required,oneof=email wait condition"`

	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`

	WaitDuration *int   `json:"wait_duration" validate:"omitempty,gt=0"`
	WaitUnit     string `json:"wait_unit" validate:"omitempty,oneof=hours days weeks"`

	ConditionType   string `json:"condition_type"`
	TrueNextStepID  *uint  `json:"true_next_step_id"`
	FalseNextStepID *uint  `json:"false_next_step_id"`
}

// AddStep appends a step to a draft sequence. Steps of an active or
// archived sequence are immutable; executions may already reference them.
func (sc *SequenceController) AddStep(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	sequenceID := c.Params("id")

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", sequenceID, userID).First(&sequence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	if sequence.Status != models.SequenceStatusDraft {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Steps can only be added to a draft sequence",
		})
	}

	var req addStepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := sc.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": err.Error(),
		})
	}
	if req.Kind == models.StepKindCondition && req.ConditionType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Condition steps require a condition_type",
		})
	}

	// Order positions are unique within a sequence.
	var count int64
	if err := sc.DB.Model(&models.SequenceStep{}).
		Where("sequence_id = ? AND order_position = ?", sequence.ID, req.OrderPosition).
		Count(&count).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check step positions",
		})
	}
	if count > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A step already exists at this order position",
		})
	}

	step := models.SequenceStep{
		SequenceID:      sequence.ID,
		OrderPosition:   req.OrderPosition,
		Kind:            req.Kind,
		EmailSubject:    req.EmailSubject,
		EmailBody:       req.EmailBody,
		WaitDuration:    req.WaitDuration,
		WaitUnit:        req.WaitUnit,
		ConditionType:   req.ConditionType,
		TrueNextStepID:  req.TrueNextStepID,
		FalseNextStepID: req.FalseNextStepID,
	}

	if err := sc.DB.Create(&step).Error; err != nil {
		sc.Logger.Printf("Failed to create step: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create step",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(step)
}

// ActivateSequence transitions a draft sequence to active
func (sc *SequenceController) ActivateSequence(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	sequenceID := c.Params("id")

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", sequenceID, userID).First(&sequence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	if sequence.Status != models.SequenceStatusDraft {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Only draft sequences can be activated",
		})
	}

	var stepCount int64
	if err := sc.DB.Model(&models.SequenceStep{}).
		Where("sequence_id = ?", sequence.ID).
		Count(&stepCount).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count steps",
		})
	}
	if stepCount == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot activate a sequence with no steps",
		})
	}

	sequence.Status = models.SequenceStatusActive
	if err := sc.DB.Save(&sequence).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to activate sequence",
		})
	}

	return c.JSON(sequence)
}

// ArchiveSequence retires a sequence from further enrollment
func (sc *SequenceController) ArchiveSequence(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	sequenceID := c.Params("id")

	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND user_id = ?", sequenceID, userID).First(&sequence).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	sequence.Status = models.SequenceStatusArchived
	if err := sc.DB.Save(&sequence).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to archive sequence",
		})
	}

	return c.JSON(sequence)
}

// GetSequence returns a sequence with its steps ordered by position
func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	sequenceID := c.Params("id")

	var sequence models.Sequence
	err := sc.DB.Where("id = ? AND user_id = ?", sequenceID, userID).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_position ASC")
		}).
		First(&sequence).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	return c.JSON(sequence)
}

// ListSequences returns the caller's sequences, paginated
func (sc *SequenceController) ListSequences(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var sequences []models.Sequence
	var total int64

	query := sc.DB.Model(&models.Sequence{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count sequences",
		})
	}
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sequences).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sequences",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  sequences,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
