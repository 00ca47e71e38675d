package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"otp-auth-service/internal/audit"
	"otp-auth-service/internal/client"
	"otp-auth-service/internal/config"
	"otp-auth-service/internal/credential"
	"otp-auth-service/internal/directory"
	"otp-auth-service/internal/gateway"
	"otp-auth-service/internal/referral"
	redisrepo "otp-auth-service/internal/repository/redis"
	"otp-auth-service/internal/repository/scylla"
	"otp-auth-service/internal/session"
	"otp-auth-service/internal/util"
	"otp-auth-service/internal/validation"
	"otp-auth-service/internal/verifier"
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config *config.Config

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	clickhouseClient *client.ClickHouseClient

	// Stores
	userStore    *scylla.UserStore
	sessionStore *scylla.SessionStore

	// Services
	directory *directory.Directory
	ledger    *session.Ledger
	verifier  *verifier.Verifier
	issuer    *credential.Issuer
	allocator *referral.Allocator
	recorder  audit.Recorder
	engine    *gateway.Engine
	sweeper   *session.Sweeper
	wsServer  *gateway.WSServer

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.initializeServices()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
		util.Bool("clickhouse_enabled", cfg.Clickhouse.Enabled),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health
// checks. Redis and Scylla are required; Kafka and ClickHouse are optional
// audit sinks.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	redisClient, err := client.NewRedisClient(f.config, util.Get())
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	f.redisClient = redisClient
	if err := f.redisClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("redis health check: %w", err)
	}
	util.Info("Redis client initialized and healthy")

	scyllaClient, err := scylla.NewScyllaClient(f.config, util.Get())
	if err != nil {
		return fmt.Errorf("scylla: %w", err)
	}
	f.scyllaClient = scyllaClient
	if err := f.scyllaClient.HealthCheck(); err != nil {
		return fmt.Errorf("scylla health check: %w", err)
	}
	util.Info("ScyllaDB client initialized and healthy")

	if f.config.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(f.config, util.Get())
		if err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			util.Info("Kafka producer initialized")
		}
	}

	if f.config.Clickhouse.Enabled {
		ch, err := client.NewClickHouseClient(f.config, util.Get())
		if err != nil {
			util.Warn("ClickHouse client initialization failed - proceeding without ClickHouse", util.ErrorField(err))
		} else {
			f.clickhouseClient = ch
			if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
				util.Warn("ClickHouse health check failed", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client initialized and healthy")
			}
		}
	}

	return nil
}

// initializeServices wires stores, domain services and the event engine.
func (f *Factory) initializeServices() {
	logger := util.Get()
	cfg := f.config

	f.userStore = scylla.NewUserStore(f.scyllaClient, cfg.Scylla.UserBuckets)
	f.sessionStore = scylla.NewSessionStore(f.scyllaClient)

	sequence := redisrepo.NewSequence(f.redisClient)
	registry := redisrepo.NewReferralRegistry(f.redisClient, f.userStore)

	f.directory = directory.New(f.userStore, sequence, logger)
	f.ledger = session.NewLedger(f.sessionStore, cfg.OTP.Lifetime, logger)
	f.issuer = credential.NewIssuer([]byte(cfg.JWT.Secret), cfg.JWT.Lifetime)
	f.verifier = verifier.New(f.ledger, f.directory, f.issuer, cfg.OTP.MaxAttempts, logger)
	f.allocator = referral.NewAllocator(registry, cfg.Referral.CodeLength, cfg.Referral.MaxAttempts, logger)
	f.recorder = f.buildRecorder(logger)
	f.sweeper = session.NewSweeper(f.ledger, cfg.OTP.SweepInterval, logger)

	f.engine = gateway.NewEngine(gateway.EngineParams{
		Directory: f.directory,
		Ledger:    f.ledger,
		Verifier:  f.verifier,
		Issuer:    f.issuer,
		Allocator: f.allocator,
		Validator: validation.New(),
		Audit:     f.recorder,
		OTPDigits: cfg.OTP.Digits,
		Logger:    logger,
	})
	f.wsServer = gateway.NewWSServer(f.engine, cfg.Server.AllowedOrigins, logger)

	util.Info("Services initialized successfully")
}

func (f *Factory) buildRecorder(logger *zap.Logger) audit.Recorder {
	var sinks audit.MultiRecorder
	if f.kafkaProducer != nil {
		sinks = append(sinks, audit.NewKafkaRecorder(f.kafkaProducer, logger))
	}
	if f.clickhouseClient != nil {
		sinks = append(sinks, audit.NewClickHouseRecorder(f.clickhouseClient, logger))
	}
	if len(sinks) == 0 {
		return audit.NopRecorder{}
	}
	return sinks
}

// HealthCheck probes every initialized client concurrently.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	var (
		mu           sync.Mutex
		healthErrors = make(map[string]error)
	)
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		healthErrors[name] = err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if f.redisClient == nil {
			record("redis", fmt.Errorf("redis client not initialized"))
		} else if err := f.redisClient.HealthCheck(gctx); err != nil {
			record("redis", err)
		}
		return nil
	})
	g.Go(func() error {
		if f.scyllaClient == nil {
			record("scylla", fmt.Errorf("scylla client not initialized"))
		} else if err := f.scyllaClient.HealthCheck(); err != nil {
			record("scylla", err)
		}
		return nil
	})
	g.Go(func() error {
		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.HealthCheck(gctx); err != nil {
				record("kafka", err)
			}
		}
		return nil
	})
	g.Go(func() error {
		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.HealthCheck(gctx); err != nil {
				record("clickhouse", err)
			}
		}
		return nil
	})
	_ = g.Wait()

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	// The audit sinks are best-effort; only the core stores gate readiness.
	delete(healthErrors, "kafka")
	delete(healthErrors, "clickhouse")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		util.Sync()
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Engine() *gateway.Engine {
	return f.engine
}

func (f *Factory) WSServer() *gateway.WSServer {
	return f.wsServer
}

func (f *Factory) Sweeper() *session.Sweeper {
	return f.sweeper
}
