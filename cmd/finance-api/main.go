package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/yyup-edu/enrollment-finance-api/api/swagger"
	"github.com/yyup-edu/enrollment-finance-api/internal/handler"
	"github.com/yyup-edu/enrollment-finance-api/internal/middleware"
	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	"github.com/yyup-edu/enrollment-finance-api/internal/repository"
	"github.com/yyup-edu/enrollment-finance-api/internal/service"
	"github.com/yyup-edu/enrollment-finance-api/pkg/cache"
	"github.com/yyup-edu/enrollment-finance-api/pkg/config"
	"github.com/yyup-edu/enrollment-finance-api/pkg/database"
	"github.com/yyup-edu/enrollment-finance-api/pkg/jobs"
	"github.com/yyup-edu/enrollment-finance-api/pkg/logger"
	corsmiddleware "github.com/yyup-edu/enrollment-finance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/yyup-edu/enrollment-finance-api/pkg/middleware/requestid"
)

// @title Enrollment Finance API
// @version 1.0.0
// @description Kindergarten enrollment-to-finance linkage service
// @BasePath /api
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Redis is an accelerator here, not a dependency worth dying for.
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	planRepo := repository.NewPlanRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	feePackageRepo := repository.NewFeePackageRepository(db)
	billRepo := repository.NewBillRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	linkageRepo := repository.NewLinkageRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	planSvc := service.NewPlanService(planRepo, quotaRepo, validate, logr)
	quotaSvc := service.NewQuotaService(quotaRepo, logr)
	feePackageSvc := service.NewFeePackageService(feePackageRepo, validate, logr)
	billingSvc := service.NewBillingService(billRepo, enrollmentRepo, feePackageRepo, cfg.Finance, validate, logr)
	paymentSvc := service.NewPaymentService(billRepo, validate, logr)
	refundSvc := service.NewRefundService(refundRepo, billRepo, validate, logr)

	reminderQueue := jobs.NewQueue("payment-reminders", func(ctx context.Context, job jobs.Job) error {
		// Notification delivery is owned by the surrounding platform; the
		// queue worker records the dispatch and the metric.
		logr.Sugar().Infow("payment reminder dispatched", "job_id", job.ID, "payload", job.Payload)
		metricsSvc.ReminderSent()
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Reminder.WorkerConcurrency,
		MaxRetries: cfg.Reminder.WorkerRetries,
		RetryDelay: cfg.Reminder.RetryDelay,
		Logger:     logr,
	})

	reminderSvc := service.NewReminderService(reminderRepo, billRepo, reminderQueue, cfg.Finance.ReminderDays, logr)
	linkageSvc := service.NewLinkageService(linkageRepo, enrollmentRepo, billRepo, billingSvc, feePackageRepo, cacheRepo, cfg.Finance, logr)

	// Handlers.
	planHandler := handler.NewPlanHandler(planSvc, quotaSvc)
	feePackageHandler := handler.NewFeePackageHandler(feePackageSvc)
	billHandler := handler.NewBillHandler(billingSvc, paymentSvc)
	refundHandler := handler.NewRefundHandler(refundSvc)
	linkageHandler := handler.NewLinkageHandler(linkageSvc, billingSvc, paymentSvc, reminderSvc, feePackageSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	staff := middleware.RequireRoles(models.RolePrincipal, models.RoleAdmin)

	plans := api.Group("/enrollment-plans")
	{
		plans.GET("", planHandler.List)
		plans.GET("/:id", planHandler.Get)
		plans.GET("/:id/quotas", planHandler.Quotas)
		plans.POST("", staff, planHandler.Create)
		plans.POST("/:id/quotas", staff, planHandler.CreateQuotas)
		plans.DELETE("/:id/quotas/:classId", staff, planHandler.DeleteQuota)
		plans.POST("/:id/quotas/:classId/reserve", staff, planHandler.ReserveSeats)
		plans.POST("/:id/quotas/:classId/release", staff, planHandler.ReleaseSeats)
		plans.PUT("/:id", staff, planHandler.Update)
		plans.POST("/:id/publish", staff, planHandler.Publish)
		plans.POST("/:id/pause", staff, planHandler.Pause)
		plans.POST("/:id/complete", staff, planHandler.Complete)
		plans.POST("/:id/cancel", staff, planHandler.Cancel)
	}

	finance := api.Group("/finance")
	{
		finance.GET("/fee-package-templates", feePackageHandler.List)
		finance.GET("/fee-package-templates/:id", feePackageHandler.Get)
		finance.POST("/fee-package-templates", staff, feePackageHandler.Create)
		finance.PUT("/fee-package-templates/:id", staff, feePackageHandler.Update)
		finance.DELETE("/fee-package-templates/:id", staff, feePackageHandler.Deactivate)

		finance.GET("/payment-bills", billHandler.List)
		finance.GET("/payment-bills/export", billHandler.Export)
		finance.GET("/payment-bills/:id", billHandler.Get)
		finance.GET("/payment-bills/:id/records", billHandler.Records)
		finance.GET("/payment-bills/:id/receipt", billHandler.Receipt)
		finance.POST("/payment-bills", staff, billHandler.Generate)
		finance.POST("/payment-bills/:id/confirm", staff, billHandler.Confirm)
		finance.POST("/payment-bills/:id/cancel", staff, billHandler.Cancel)

		finance.GET("/refund-applications", refundHandler.List)
		finance.GET("/refund-applications/:id", refundHandler.Get)
		finance.POST("/refund-applications", refundHandler.Apply)
		finance.POST("/refund-applications/:id/process", staff, refundHandler.Process)
		finance.POST("/refund-applications/:id/settle", staff, refundHandler.Settle)
	}

	legacy := api.Group("/enrollment-finance")
	{
		legacy.GET("/linkages", linkageHandler.Linkages)
		legacy.GET("/statistics", linkageHandler.Statistics)
		legacy.GET("/fee-package-templates", linkageHandler.FeePackageTemplates)
		legacy.GET("/process/:id", linkageHandler.Process)
		legacy.GET("/config", linkageHandler.Config)
		legacy.POST("/generate-bill", staff, linkageHandler.GenerateBill)
		legacy.POST("/enrollment-approved/:id", staff, linkageHandler.EnrollmentApproved)
		legacy.POST("/confirm-payment-enroll", staff, linkageHandler.ConfirmPaymentEnroll)
		legacy.POST("/batch-generate-semester-bills", staff, linkageHandler.BatchGenerateSemesterBills)
		legacy.POST("/send-payment-reminder", staff, linkageHandler.SendPaymentReminder)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reminderQueue.Start(ctx)
	defer reminderQueue.Stop()

	// Background sweeps: overdue bills and finished plans hourly, scheduled
	// reminders daily.
	go func() {
		ticker := time.NewTicker(cfg.Finance.OverdueSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if count, err := billingSvc.SweepOverdue(ctx); err != nil {
					logr.Sugar().Errorw("overdue sweep failed", "error", err)
				} else {
					metricsSvc.OverdueSwept(count)
				}
				if _, err := planSvc.CloseFinished(ctx); err != nil {
					logr.Sugar().Errorw("plan completion sweep failed", "error", err)
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := reminderSvc.RunScheduled(ctx); err != nil {
					logr.Sugar().Errorw("scheduled reminders failed", "error", err)
				}
			}
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Sugar().Errorw("shutdown failed", "error", err)
		}
	}()

	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
