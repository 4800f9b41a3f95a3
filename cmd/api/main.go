package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/edusuite/siga-api/internal/handler"
	"github.com/edusuite/siga-api/internal/middleware"
	"github.com/edusuite/siga-api/internal/repository"
	"github.com/edusuite/siga-api/internal/service"
	"github.com/edusuite/siga-api/pkg/cache"
	"github.com/edusuite/siga-api/pkg/config"
	"github.com/edusuite/siga-api/pkg/database"
	"github.com/edusuite/siga-api/pkg/logger"
	corsmiddleware "github.com/edusuite/siga-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edusuite/siga-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	termRepo := repository.NewTermRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)
	referenceRepo := repository.NewPaymentReferenceRepository(db)
	examRepo := repository.NewExamRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	matriculationRepo := repository.NewMatriculationRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	auditSvc := service.NewAuditService(auditRepo, logr)
	guard := service.NewTermGuard(termRepo, cacheRepo, cfg.Admission.TermCacheTTL, metricsSvc)
	authSvc := service.NewAuthService(userRepo, auditSvc, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "siga-api",
	})
	termSvc := service.NewTermService(termRepo, cacheRepo, auditSvc, validate, logr)
	admissionSvc := service.NewAdmissionService(candidateRepo, guard, auditSvc, cfg.Admission, validate, logr)
	paymentSvc := service.NewPaymentService(referenceRepo, candidateRepo, roomRepo, guard, auditSvc, cfg.Admission, cfg.Exam, logr)
	examSvc := service.NewExamService(examRepo, candidateRepo, roomRepo, guard, cacheRepo, auditSvc, cfg.Exam, cfg.Admission.DistributeLockTTL, validate, logr)
	matriculationSvc := service.NewMatriculationService(matriculationRepo, candidateRepo, sectionRepo, enrollmentRepo, studentRepo, waitlistRepo, guard, auditSvc, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, roomRepo, guard, auditSvc, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Term:          handler.NewTermHandler(termSvc),
		Admission:     handler.NewAdmissionHandler(admissionSvc),
		Payment:       handler.NewPaymentHandler(paymentSvc),
		Exam:          handler.NewExamHandler(examSvc),
		Matriculation: handler.NewMatriculationHandler(matriculationSvc),
		Section:       handler.NewSectionHandler(sectionSvc),
	}, authSvc, metricsSvc)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
