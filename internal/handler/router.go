package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusuite/siga-api/internal/middleware"
	"github.com/edusuite/siga-api/internal/models"
	"github.com/edusuite/siga-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Term          *TermHandler
	Admission     *AdmissionHandler
	Payment       *PaymentHandler
	Exam          *ExamHandler
	Matriculation *MatriculationHandler
	Section       *SectionHandler
}

// RegisterRoutes mounts the API surface under the given prefix. Candidate
// registration and payment confirmation stay public; everything that mutates
// term-owned data requires staff credentials.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, metrics *service.MetricsService) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)
	api.GET("/auth/me", middleware.JWT(auth), h.Auth.Me)

	// Public admission surface.
	api.POST("/admissions/candidates", h.Admission.Register)
	api.POST("/admissions/candidates/:id/payment-references", h.Payment.IssueReference)
	api.GET("/admissions/candidates/:id/payment-status", h.Payment.PaymentStatus)
	api.POST("/payment-references/:id/pay", h.Payment.MarkPaid)

	staff := api.Group("", middleware.JWT(auth))
	staffOnly := staff.Group("", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleDirector, models.RoleSecretary))

	staff.GET("/terms", h.Term.List)
	staff.GET("/terms/active", h.Term.GetActive)
	staff.GET("/terms/:id", h.Term.Get)
	staffOnly.POST("/terms", h.Term.Create)
	staffOnly.PUT("/terms/:id", h.Term.Update)
	staffOnly.DELETE("/terms/:id", h.Term.Delete)
	staffOnly.POST("/terms/:id/activate", h.Term.Activate)
	staffOnly.POST("/terms/:id/close", h.Term.Close)
	staffOnly.POST("/terms/:id/reopen",
		middleware.RequireCapability(func(caps models.Capabilities) bool { return caps.ReopenTerm }),
		h.Term.Reopen)

	staff.GET("/admissions/candidates", h.Admission.List)
	staff.GET("/admissions/candidates/:id", h.Admission.Get)
	staff.GET("/admissions/candidates/:id/payment-references", h.Payment.ListReferences)

	staffOnly.POST("/admissions/exams/distribute",
		middleware.RequireCapability(func(caps models.Capabilities) bool { return caps.RedistributeExams }),
		h.Exam.Distribute)
	staffOnly.PATCH("/admissions/candidates/:id/review", h.Admission.Review)
	staffOnly.POST("/admissions/candidates/:id/grade", h.Exam.Grade)

	staff.GET("/enrollments", h.Matriculation.ListEnrollments)
	staff.GET("/students", h.Matriculation.ListStudents)
	staff.GET("/students/:id", h.Matriculation.GetStudent)
	staffOnly.POST("/admissions/candidates/:id/matriculate", h.Matriculation.Matriculate)
	staffOnly.POST("/enrollments/matriculate", h.Matriculation.MatriculateDirect)
	staffOnly.POST("/enrollments/swap", h.Matriculation.SwapSections)
	staffOnly.POST("/admissions/waitlist", h.Matriculation.AddToWaitlist)
	staffOnly.POST("/admissions/waitlist/call-next", h.Matriculation.CallNext)

	staff.GET("/sections", h.Section.List)
	staff.GET("/sections/:id", h.Section.Get)
	staffOnly.POST("/sections", h.Section.Create)
	staffOnly.PUT("/sections/:id", h.Section.Update)
}
