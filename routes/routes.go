package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	controller "leadflow/controllers"
	"leadflow/engine"
	"leadflow/middleware"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, poller *engine.Poller) {
	// Initialize controllers with their respective loggers
	sequenceController := controller.NewSequenceController(db, log.New(os.Stdout, "SEQUENCE: ", log.LstdFlags))
	enrollmentController := controller.NewEnrollmentController(db, log.New(os.Stdout, "ENROLLMENT: ", log.LstdFlags))
	executionController := controller.NewExecutionController(db, poller, log.New(os.Stdout, "EXECUTION: ", log.LstdFlags))
	leadController := controller.NewLeadController(db, log.New(os.Stdout, "LEAD: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Sequence routes
	sequences := api.Group("/sequences")
	sequences.Post("/", sequenceController.CreateSequence)
	sequences.Get("/", sequenceController.ListSequences)
	sequences.Get("/:id", sequenceController.GetSequence)
	sequences.Post("/:id/steps", sequenceController.AddStep)
	sequences.Post("/:id/activate", sequenceController.ActivateSequence)
	sequences.Post("/:id/archive", sequenceController.ArchiveSequence)
	sequences.Post("/:id/enrollments", enrollmentController.CreateEnrollment)

	// Enrollment routes
	enrollments := api.Group("/enrollments")
	enrollments.Get("/stuck", enrollmentController.ListStuckEnrollments)
	enrollments.Post("/:id/pause", enrollmentController.PauseEnrollment)
	enrollments.Post("/:id/resume", enrollmentController.ResumeEnrollment)
	enrollments.Get("/:id/executions", executionController.ListExecutions)

	// Manual poll trigger; same claim-guarded path as the worker
	api.Post("/executions/process", middleware.ProcessRateLimiter(), executionController.ProcessDue)

	// Lead routes
	leads := api.Group("/leads")
	leads.Post("/", leadController.CreateLead)
	leads.Get("/", leadController.ListLeads)
}
