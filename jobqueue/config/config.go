package config

import (
	"context"
	"time"

	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/backend"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/driver"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/errors"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/job"
	"github.com/IT-For-Youth-Ghana/Webapps-sub003/jobqueue/ratelimit"
)

// QueueConfig declares one queue. Zero-valued fields inherit the engine
// defaults from Config when the manager registers the queue.
type QueueConfig struct {
	Name string

	// Concurrency is the number of worker goroutines pulling from this
	// queue. Defaults to Config.DefaultConcurrency.
	Concurrency int

	// RateLimit caps job starts inside a sliding window. Zero means
	// unlimited.
	RateLimit ratelimit.Limit

	// Defaults override the engine-wide job defaults for this queue.
	Defaults job.Defaults
}

type Config struct {
	Driver driver.Driver // "redis" (default) | "memory" | "custom"

	RedisURL             string
	RedisHost            string
	RedisPort            int
	RedisDB              int
	RedisPassword        string
	RedisUsername        string
	RedisPoolSize        int
	RedisMaxRetries      int
	RedisConnMaxIdleTime time.Duration
	RedisPingTimeout     time.Duration

	// KeyPrefix namespaces every Redis key the engine writes.
	KeyPrefix string

	CustomBackend backend.Backend

	// DefaultConcurrency applies to queues declared without an explicit
	// worker count.
	DefaultConcurrency int

	// PollInterval is how long an idle worker waits before asking for
	// work again.
	PollInterval time.Duration

	// PromoteInterval is how often due delayed jobs move back to waiting.
	PromoteInterval time.Duration
	PromoteBatch    int

	// TickInterval is how often recurring schedules are checked.
	TickInterval time.Duration

	// LockTTL is the processing-lock lifetime of an active job; a worker
	// that stops renewing it within this window is presumed dead.
	LockTTL time.Duration

	// HeartbeatInterval is how often workers renew their locks. Must be
	// comfortably below LockTTL.
	HeartbeatInterval time.Duration

	// ShutdownGrace bounds how long Shutdown waits for in-flight jobs
	// before requeueing them.
	ShutdownGrace time.Duration

	// Engine-wide job defaults, overridable per queue and per enqueue.
	DefaultPriority    int
	DefaultAttempts    int
	DefaultBackoff     job.BackoffPolicy
	DefaultJobTimeout  time.Duration
	CompletedRetention job.Retention
	FailedRetention    job.Retention

	// HealthCheck flags a queue unhealthy past these marks. Zero disables
	// the respective threshold.
	HealthMaxWaiting int64
	HealthMaxFailed  int64
}

func (c *Config) SetDefaults() {
	if string(c.Driver) == "" {
		c.Driver = driver.DriverRedis
	}
	if c.Driver == driver.DriverRedis {
		if c.RedisHost == "" && c.RedisURL == "" {
			c.RedisHost = "localhost"
		}
		if c.RedisPort == 0 {
			c.RedisPort = 6379
		}
		if c.RedisPoolSize == 0 {
			c.RedisPoolSize = 10
		}
		if c.RedisMaxRetries == 0 {
			c.RedisMaxRetries = 3
		}
		if c.RedisConnMaxIdleTime == 0 {
			c.RedisConnMaxIdleTime = 5 * time.Minute
		}
		if c.RedisPingTimeout == 0 {
			c.RedisPingTimeout = 5 * time.Second
		}
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "jobqueue"
	}
	if c.DefaultConcurrency == 0 {
		c.DefaultConcurrency = 5
	}
	if c.PollInterval == 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.PromoteInterval == 0 {
		c.PromoteInterval = time.Second
	}
	if c.PromoteBatch == 0 {
		c.PromoteBatch = 100
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	if c.LockTTL == 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = 30 * time.Second
	}
	if c.DefaultAttempts == 0 {
		c.DefaultAttempts = 1
	}
	if c.DefaultBackoff.Type == "" {
		c.DefaultBackoff = job.BackoffPolicy{
			Type:  job.BackoffExponential,
			Delay: time.Second,
		}
	}
	if c.DefaultJobTimeout == 0 {
		c.DefaultJobTimeout = 5 * time.Minute
	}
	if c.CompletedRetention == (job.Retention{}) {
		c.CompletedRetention = job.Retention{MaxAge: 24 * time.Hour, MaxCount: 1000}
	}
	if c.FailedRetention == (job.Retention{}) {
		c.FailedRetention = job.Retention{MaxAge: 7 * 24 * time.Hour, MaxCount: 5000}
	}
}

func (c *Config) Validate() error {
	if c.DefaultConcurrency < 1 {
		return &errors.ConfigurationError{Field: "default_concurrency", Message: "must be >= 1"}
	}
	if c.PollInterval <= 0 {
		return &errors.ConfigurationError{Field: "poll_interval", Message: "must be > 0"}
	}
	if c.PromoteInterval <= 0 {
		return &errors.ConfigurationError{Field: "promote_interval", Message: "must be > 0"}
	}
	if c.TickInterval <= 0 {
		return &errors.ConfigurationError{Field: "tick_interval", Message: "must be > 0"}
	}
	if c.LockTTL <= 0 {
		return &errors.ConfigurationError{Field: "lock_ttl", Message: "must be > 0"}
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatInterval >= c.LockTTL {
		return &errors.ConfigurationError{Field: "heartbeat_interval", Message: "must be > 0 and below lock_ttl"}
	}
	if c.ShutdownGrace <= 0 {
		return &errors.ConfigurationError{Field: "shutdown_grace", Message: "must be > 0"}
	}
	if c.DefaultAttempts < 1 {
		return &errors.ConfigurationError{Field: "default_attempts", Message: "must be >= 1"}
	}
	switch c.DefaultBackoff.Type {
	case job.BackoffFixed, job.BackoffExponential:
	default:
		return &errors.ConfigurationError{Field: "default_backoff", Message: "type must be 'fixed' or 'exponential'"}
	}

	switch c.Driver {
	case driver.DriverRedis, "":
		if c.RedisURL == "" && c.RedisHost == "" {
			return &errors.ConfigurationError{Field: "redis_host", Message: "redis_url or redis_host must be provided"}
		}
		if c.RedisPort < 0 || c.RedisPort > 65535 {
			return &errors.ConfigurationError{Field: "redis_port", Message: "must be between 0 and 65535"}
		}
		if c.RedisPoolSize < 1 {
			return &errors.ConfigurationError{Field: "redis_pool_size", Message: "must be >= 1"}
		}

	case driver.DriverMemory:

	case driver.DriverCustom:
		if c.CustomBackend == nil {
			return &errors.ConfigurationError{Field: "custom_backend", Message: "must be provided when driver is 'custom'"}
		}

	default:
		return &errors.ConfigurationError{Field: "driver", Message: "unsupported driver: " + string(c.Driver)}
	}

	return nil
}

func (c *Config) CreateBackend(ctx context.Context) (backend.Backend, error) {
	switch c.Driver {
	case driver.DriverRedis, "":
		redisCfg := backend.RedisConfig{
			URL:             c.RedisURL,
			Host:            c.RedisHost,
			Port:            c.RedisPort,
			DB:              c.RedisDB,
			Password:        c.RedisPassword,
			Username:        c.RedisUsername,
			PoolSize:        c.RedisPoolSize,
			MaxRetries:      c.RedisMaxRetries,
			ConnMaxIdleTime: c.RedisConnMaxIdleTime,
			PingTimeout:     c.RedisPingTimeout,
			Prefix:          c.KeyPrefix,
		}
		return backend.NewRedisBackend(ctx, redisCfg)
	case driver.DriverMemory:
		return backend.NewMemoryBackend(), nil
	case driver.DriverCustom:
		if c.CustomBackend == nil {
			return nil, &errors.ConfigurationError{Field: "custom_backend", Message: "must be provided when driver is 'custom'"}
		}
		return c.CustomBackend, nil
	default:
		return nil, &errors.ConfigurationError{Field: "driver", Message: "unsupported driver: " + string(c.Driver)}
	}
}

// JobDefaults folds the engine-wide defaults with a queue's overrides into
// the effective per-queue defaults.
func (c *Config) JobDefaults(q QueueConfig) job.Defaults {
	d := job.Defaults{
		Priority:        c.DefaultPriority,
		Attempts:        c.DefaultAttempts,
		Backoff:         c.DefaultBackoff,
		Timeout:         c.DefaultJobTimeout,
		CompletedWindow: c.CompletedRetention,
		FailedWindow:    c.FailedRetention,
	}
	if q.Defaults.Attempts > 0 {
		d.Attempts = q.Defaults.Attempts
	}
	if q.Defaults.Priority != 0 {
		d.Priority = q.Defaults.Priority
	}
	if q.Defaults.Backoff.Type != "" {
		d.Backoff = q.Defaults.Backoff
	}
	if q.Defaults.Timeout > 0 {
		d.Timeout = q.Defaults.Timeout
	}
	if q.Defaults.CompletedWindow != (job.Retention{}) {
		d.CompletedWindow = q.Defaults.CompletedWindow
	}
	if q.Defaults.FailedWindow != (job.Retention{}) {
		d.FailedWindow = q.Defaults.FailedWindow
	}
	return d
}
