package outbox

import "time"

// Config holds runtime configuration for the scheduler, loaded from the
// environment by cmd/server via envconfig. Library callers that embed
// the scheduler directly may also construct one by hand.
type Config struct {
	// ListenAddr is the HTTP listen address for the ingress/status API.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`

	// DatabaseURL is the relational store DSN.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// RedisAddr is the durable-KV (task queue + rate counters) address.
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// MaxEmailsPerHour is the global hourly send ceiling.
	MaxEmailsPerHour int `envconfig:"MAX_EMAILS_PER_HOUR" default:"200"`

	// MaxEmailsPerHourPerSender is the per-sender hourly send ceiling.
	MaxEmailsPerHourPerSender int `envconfig:"MAX_EMAILS_PER_HOUR_PER_SENDER" default:"50"`

	// MinDelayBetweenEmailsMs is the minimum spacing, in milliseconds,
	// enforced after rate-limiter admission and before the SMTP call.
	MinDelayBetweenEmailsMs int `envconfig:"MIN_DELAY_BETWEEN_EMAILS_MS" default:"2000"`

	// WorkerConcurrency is the number of concurrent delivery workers.
	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"5"`

	// PollInterval is how often idle workers poll the task queue.
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`

	// ShutdownTimeout bounds the graceful-drain window on SIGTERM/SIGINT.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// HeartbeatInterval is how often in-flight tasks are heartbeated.
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"10s"`

	// StaleTaskThreshold is the interval at which the worker pool's
	// reaper runs (zero disables it). The Redis queue returns a reserved
	// task to the ready queue once its lease, set at Reserve and extended
	// by each heartbeat, has expired; it does not use this value.
	StaleTaskThreshold time.Duration `envconfig:"STALE_TASK_THRESHOLD" default:"30s"`

	// MailTransport selects the MailSender implementation: "ses" or "smtp".
	MailTransport string `envconfig:"MAIL_TRANSPORT" default:"smtp"`

	// AWSRegion is used by the SES mail transport.
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`

	// SESFromAddress is the verified from-address used by the SES
	// mail transport.
	SESFromAddress string `envconfig:"SES_FROM_ADDRESS" default:""`
}

// DefaultConfig returns a Config with the spec's documented defaults.
// DatabaseURL still needs to be supplied; this is a
// convenience for tests and examples, not a substitute for envconfig.
func DefaultConfig() Config {
	return Config{
		ListenAddr:                ":8080",
		RedisAddr:                 "localhost:6379",
		MaxEmailsPerHour:          200,
		MaxEmailsPerHourPerSender: 50,
		MinDelayBetweenEmailsMs:   2000,
		WorkerConcurrency:         5,
		PollInterval:              time.Second,
		ShutdownTimeout:           30 * time.Second,
		HeartbeatInterval:         10 * time.Second,
		StaleTaskThreshold:        30 * time.Second,
		MailTransport:             "smtp",
		AWSRegion:                 "us-east-1",
		SESFromAddress:            "",
	}
}
