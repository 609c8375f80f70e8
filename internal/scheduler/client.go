package scheduler

import (
	"crypto/tls"
	"fmt"

	"leadrouter_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// redisClientOpt builds the asynq Redis connection options from a URL,
// optionally skipping TLS verification for managed Redis with self-signed
// certificates.
func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}

	clientOpt := asynq.RedisClientOpt{
		Addr:     opt.Addr,
		Username: opt.Username,
		Password: opt.Password,
		DB:       opt.DB,
	}
	if opt.TLSConfig != nil {
		clientOpt.TLSConfig = opt.TLSConfig
		if tlsInsecure {
			clientOpt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
	}
	return clientOpt, nil
}

// Client enqueues outbox delivery tasks.
type Client struct {
	inner *asynq.Client
	queue string
}

// NewClient creates the task client from scheduler configuration.
func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return &Client{
		inner: asynq.NewClient(opt),
		queue: cfg.GetAsynqQueueName(),
	}, nil
}

// Enqueue submits a task to the configured queue.
func (c *Client) Enqueue(task *asynq.Task, opts ...asynq.Option) error {
	opts = append(opts, asynq.Queue(c.queue))
	_, err := c.inner.Enqueue(task, opts...)
	return err
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.inner.Close()
}
