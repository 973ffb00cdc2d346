package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/microfinance/internal/alert/application"
	"github.com/wyfcoding/microfinance/internal/alert/infrastructure/persistence/mysql"
	"github.com/wyfcoding/microfinance/internal/alert/infrastructure/sender"
	"github.com/wyfcoding/microfinance/internal/alert/interfaces/consumer"
	httpiface "github.com/wyfcoding/microfinance/internal/alert/interfaces/http"
	"github.com/wyfcoding/microfinance/pkg/config"
	"github.com/wyfcoding/microfinance/pkg/db"
	"github.com/wyfcoding/microfinance/pkg/logger"
	"github.com/wyfcoding/microfinance/pkg/metrics"
	"github.com/wyfcoding/microfinance/pkg/middleware"
	"github.com/wyfcoding/microfinance/pkg/mq"
	"github.com/wyfcoding/microfinance/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/alert/config.toml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal(ctx, "alert service exited", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// 容器编排下数据库可能晚于服务就绪, 连接带重试
	var database *db.DB
	err := utils.Retry(5, 2*time.Second, func() error {
		var initErr error
		database, initErr = db.Init(db.Config{
			Driver:             cfg.Database.Driver,
			DSN:                cfg.Database.DSN,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			LogEnabled:         cfg.Database.LogEnabled,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		})
		return initErr
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer database.Close()

	if cfg.Environment != "prod" {
		if err := database.AutoMigrate(&mysql.AlertLogModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	kafkaConsumer, err := mq.NewConsumer(mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
	}, cfg.Kafka.LoanEventsTopic)
	if err != nil {
		return fmt.Errorf("init kafka consumer: %w", err)
	}
	defer kafkaConsumer.Close()

	// 领域装配
	log := logger.Get()
	smtpSender := sender.NewSMTPSender(sender.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	alertLogs := mysql.NewAlertLogRepository(database.DB)
	scheduleReader := mysql.NewScheduleReader(database.DB)
	alertService := application.NewAlertService(smtpSender, alertLogs, scheduleReader, m, log, cfg.Alert.UpcomingDays)
	eventConsumer := consumer.NewEventConsumer(kafkaConsumer, alertService, log)

	// HTTP 服务
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.GinLogging(), middleware.GinRecovery(), middleware.GinMetrics(m))
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "service": cfg.ServiceName})
	})
	httpiface.NewAlertHandler(alertService).RegisterRoutes(engine)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	scanInterval := time.Duration(cfg.Alert.ScanInterval) * time.Hour
	if scanInterval <= 0 {
		scanInterval = 24 * time.Hour
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(ctx, "alert service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return eventConsumer.Run(ctx)
	})
	g.Go(func() error {
		// 启动即扫一轮, 然后按固定间隔重复
		if err := alertService.RunScheduledScan(ctx); err != nil {
			logger.Error(ctx, "reminder scan failed", "error", err)
		}
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := alertService.RunScheduledScan(ctx); err != nil {
					logger.Error(ctx, "reminder scan failed", "error", err)
				}
			}
		}
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
