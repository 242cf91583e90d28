package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/facilitator-activity-tracker/internal/config"
	"github.com/noah-isme/facilitator-activity-tracker/internal/handler"
	"github.com/noah-isme/facilitator-activity-tracker/internal/middleware"
	"github.com/noah-isme/facilitator-activity-tracker/internal/queue"
	"github.com/noah-isme/facilitator-activity-tracker/internal/repository"
	"github.com/noah-isme/facilitator-activity-tracker/internal/router"
	"github.com/noah-isme/facilitator-activity-tracker/internal/scheduler"
	"github.com/noah-isme/facilitator-activity-tracker/internal/service"
	"github.com/noah-isme/facilitator-activity-tracker/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Container holds every wired component of the tracker process.
type Container struct {
	Config config.Config
	Logger zerolog.Logger

	DB    *gorm.DB
	SQLDB *sql.DB
	Redis *redis.Client

	Queue        *queue.RedisQueue
	ActivityLogs service.ActivityLogService
	MissingLogs  service.MissingLogService
	Dispatcher   service.NotificationDispatcher
	Worker       *worker.Worker
	Scheduler    *scheduler.Scheduler
	HTTP         *fiber.App
}

// New wires the components on top of already opened connections.
func New(cfg config.Config, db *gorm.DB, redisClient *redis.Client, logger zerolog.Logger) (*Container, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql handle: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	activityLogRepo := repository.NewActivityLogRepository(db)
	offeringRepo := repository.NewCourseOfferingRepository(db)
	userRepo := repository.NewUserRepository(db)
	noticeRepo := repository.NewDeadlineNoticeRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	jobs := queue.NewRedisQueue(redisClient, cfg.QueuePrefix)

	dispatcher := service.NewNotificationDispatcher(jobs, userRepo, activityLogRepo, service.DispatcherConfig{
		Timeout:        cfg.DispatchTimeout,
		ReminderWindow: cfg.ReminderWindow,
	}, logger)
	activityLogs := service.NewActivityLogService(activityLogRepo, offeringRepo, dispatcher, validate, logger)
	missingLogs := service.NewMissingLogService(offeringRepo, activityLogRepo, service.WeekConfig{
		Mode:  cfg.WeekMode,
		Epoch: cfg.WeekEpoch,
		Grace: cfg.DeadlineGrace,
	}, logger)

	payloads, err := worker.NewPayloadValidator()
	if err != nil {
		return nil, err
	}
	notificationWorker := worker.New(jobs, newSender(cfg, notificationRepo, logger), payloads, worker.Config{
		Concurrency:     cfg.WorkerConcurrency,
		MaxAttempts:     cfg.MaxAttempts,
		BackoffBase:     cfg.BackoffBase,
		BackoffMax:      cfg.BackoffMax,
		PollTimeout:     cfg.PollTimeout,
		PromoteInterval: cfg.PromoteInterval,
		DeliveredTTL:    cfg.DeliveredTTL,
		RecoverOnStart:  cfg.RecoverOnStart,
	}, logger)

	var notices scheduler.NoticeRecorder
	if cfg.DeadlineNotices {
		notices = noticeRepo
	}
	sweep := scheduler.NewSweep(missingLogs, dispatcher, notices, logger)
	sweepScheduler, err := scheduler.New(sweep, scheduler.Config{
		Schedule:   cfg.SweepSchedule,
		Timezone:   cfg.SweepTimezone,
		RunOnStart: cfg.SweepOnStart,
	}, logger)
	if err != nil {
		return nil, err
	}

	httpApp := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ServerHeader:          cfg.AppName,
		DisableStartupMessage: true,
	})
	middleware.Register(httpApp, middleware.Config{Logger: &logger})
	router.Register(httpApp, cfg, router.Dependencies{
		Database:          sqlDB,
		Queue:             jobs,
		DeadLetterHandler: handler.NewDeadLetterHandler(jobs, logger),
	})

	return &Container{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		SQLDB:        sqlDB,
		Redis:        redisClient,
		Queue:        jobs,
		ActivityLogs: activityLogs,
		MissingLogs:  missingLogs,
		Dispatcher:   dispatcher,
		Worker:       notificationWorker,
		Scheduler:    sweepScheduler,
		HTTP:         httpApp,
	}, nil
}

// Run starts the worker, the scheduler and the ops HTTP server, and blocks
// until ctx is cancelled or one of them fails.
func (c *Container) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.Worker.Run(groupCtx)
	})

	group.Go(func() error {
		if err := c.Scheduler.Start(groupCtx); err != nil {
			return err
		}
		<-groupCtx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		c.Scheduler.Stop(stopCtx)
		return nil
	})

	group.Go(func() error {
		c.Logger.Info().Str("address", c.Config.HTTPAddress()).Msg("ops server listening")
		if err := c.HTTP.Listen(c.Config.HTTPAddress()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return c.HTTP.ShutdownWithContext(shutdownCtx)
	})

	return group.Wait()
}

func newSender(cfg config.Config, notifications repository.NotificationRepository, logger zerolog.Logger) worker.Sender {
	if cfg.NotifyChannel == config.ChannelInbox {
		return worker.NewInboxSender(notifications, logger)
	}
	return worker.NewLogSender(logger)
}
