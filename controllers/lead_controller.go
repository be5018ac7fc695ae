package controller

import (
	"log"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadflow/models"
	"leadflow/utils"
)

// LeadController is a minimal intake surface; full lead management lives
// in the surrounding application. Enrollments only need leads to exist.
type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewLeadController(db *gorm.DB, logger *log.Logger) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
	}
}

type createLeadRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
}

// CreateLead registers a contact. A lead may be created without an email
// address; the email step fails terminally for such leads at send time.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req createLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email != "" {
		if err := checkmail.ValidateFormat(email); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid email address format",
			})
		}
	}

	lead := models.Lead{
		UserID:  userID,
		Name:    strings.TrimSpace(req.Name),
		Email:   email,
		Company: req.Company,
		Phone:   req.Phone,
	}

	if err := lc.DB.Create(&lead).Error; err != nil {
		lc.Logger.Printf("Failed to create lead: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create lead",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(lead)
}

// ListLeads returns the caller's leads, paginated
func (lc *LeadController) ListLeads(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var leads []models.Lead
	var total int64

	query := lc.DB.Model(&models.Lead{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count leads",
		})
	}
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&leads).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list leads",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
