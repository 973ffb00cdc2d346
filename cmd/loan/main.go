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

	"github.com/wyfcoding/microfinance/internal/loan/application"
	"github.com/wyfcoding/microfinance/internal/loan/infrastructure/messaging"
	"github.com/wyfcoding/microfinance/internal/loan/infrastructure/persistence/mysql"
	httpiface "github.com/wyfcoding/microfinance/internal/loan/interfaces/http"
	"github.com/wyfcoding/microfinance/pkg/cache"
	"github.com/wyfcoding/microfinance/pkg/config"
	"github.com/wyfcoding/microfinance/pkg/db"
	"github.com/wyfcoding/microfinance/pkg/logger"
	"github.com/wyfcoding/microfinance/pkg/metrics"
	"github.com/wyfcoding/microfinance/pkg/middleware"
	"github.com/wyfcoding/microfinance/pkg/mq"
	"github.com/wyfcoding/microfinance/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/loan/config.toml", "path to config file")
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
		logger.Fatal(ctx, "loan service exited", "error", err)
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
		if err := database.AutoMigrate(
			&mysql.CustomerModel{},
			&mysql.LoanModel{},
			&mysql.AmortizationEntryModel{},
			&mysql.PaymentModel{},
			&mysql.CollateralModel{},
			&mysql.DocumentModel{},
			&mysql.SequenceModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	defer redisCache.Close()

	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		return fmt.Errorf("init kafka producer: %w", err)
	}
	defer producer.Close()

	// 领域装配
	log := logger.Get()
	customers := mysql.NewCustomerRepository(database.DB)
	loans := mysql.NewLoanRepository(database.DB)
	collaterals := mysql.NewCollateralRepository(database.DB)
	documents := mysql.NewDocumentRepository(database.DB)
	notifier := messaging.NewKafkaNotifier(producer, cfg.Kafka.LoanEventsTopic)

	loanService := application.NewLoanService(customers, loans, collaterals, documents, notifier, log)
	paymentService := application.NewPaymentService(customers, loans, notifier, log)
	scheduleQuery := application.NewScheduleQueryService(loans, redisCache, log)

	// HTTP 服务
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.GinLogging(), middleware.GinRecovery(), middleware.GinMetrics(m))
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "service": cfg.ServiceName})
	})
	httpiface.NewLoanHandler(loanService, paymentService, scheduleQuery, m).RegisterRoutes(engine)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(ctx, "loan service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
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
