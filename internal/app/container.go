package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/config"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/infra/db"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/infra/redis"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/queue"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository"
	pgrepo "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository/postgres"
	scyllarepo "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/repository/scylla"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/concurrency"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/eligibility"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/outcome"
	retrysvc "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/retry"
	strategysvc "github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/internal/service/strategy"
	"github.com/shekhardialflo/dialflo-sparkle-dashboard-sub000/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		dispatchers  *dispatchers
		locks        *locks
	}
}

type repositories struct {
	Strategies repository.StrategyRepository
	Queue      repository.RetryQueueRepository
	Attempts   repository.AttemptStore
	Stats      repository.RetryStatsRepository
}

type services struct {
	Strategy    *strategysvc.Service
	Coordinator *retrysvc.Coordinator
}

type dispatchers struct {
	Dial      *queue.DialDispatcher
	Decisions *queue.DecisionPublisher
}

type locks struct {
	Lead concurrency.LeadLocker
	Tick concurrency.TickLock
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			Strategies: pgrepo.NewStrategyRepository(c.Postgres.DB()),
			Queue:      pgrepo.NewRetryQueueRepository(c.Postgres.DB()),
			Stats:      pgrepo.NewRetryStatsRepository(c.Postgres.DB()),
			Attempts:   scyllarepo.NewAttemptStore(c.Scylla.Session()),
		}

		disp := &dispatchers{
			Dial:      queue.NewDialDispatcher(c.Kafka, c.Config.Kafka.DialTopic),
			Decisions: queue.NewDecisionPublisher(c.Kafka, c.Config.Kafka.DecisionTopic),
		}

		lk := &locks{
			Lead: concurrency.NewRedisLeadLock(c.Redis.Inner(), c.Config.Retry.LeadLockTTL),
			Tick: concurrency.NewRedisTickLock(c.Redis.Inner(), c.Config.Scheduler.LockKey, c.Config.Scheduler.LockTTL),
		}

		svcs := &services{
			Strategy: strategysvc.NewService(repos.Strategies, repos.Stats),
			Coordinator: retrysvc.NewCoordinator(
				repos.Strategies,
				repos.Attempts,
				repos.Queue,
				repos.Stats,
				outcome.NewClassifier(c.Logger),
				eligibility.NewEvaluator(c.Config.Retry.ConvertedDispositions),
				lk.Lead,
				disp.Decisions,
				c.Logger,
			),
		}

		c.components.repositories = repos
		c.components.dispatchers = disp
		c.components.locks = lk
		c.components.services = svcs
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Dispatchers exposes Kafka dispatchers.
func (c *Container) Dispatchers() *dispatchers {
	c.initComponents()
	return c.components.dispatchers
}

// Locks exposes distributed lock utilities.
func (c *Container) Locks() *locks {
	c.initComponents()
	return c.components.locks
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	topics := []string{
		c.Config.Kafka.AttemptTopic,
		c.Config.Kafka.DialTopic,
		c.Config.Kafka.DecisionTopic,
	}
	return c.Kafka.EnsureTopics(ctx, topics, 48, 1)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if d := c.components.dispatchers; d != nil {
		if d.Dial != nil {
			if err := d.Dial.Close(); err != nil {
				errs = append(errs, fmt.Errorf("dial dispatcher close: %w", err))
			}
		}
		if d.Decisions != nil {
			if err := d.Decisions.Close(); err != nil {
				errs = append(errs, fmt.Errorf("decision publisher close: %w", err))
			}
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
