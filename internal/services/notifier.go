package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/eduforge/coursegen-backend/internal/platform/envutil"
	"github.com/eduforge/coursegen-backend/internal/platform/logger"
)

// RunEvent is one status update published for external observers (the bot
// front-end polls or subscribes to these).
type RunEvent struct {
	RunID     uuid.UUID `json:"run_id"`
	CourseID  uuid.UUID `json:"course_id"`
	CreatorID int64     `json:"creator_id"`
	Event     string    `json:"event"` // progress | completed | failed
	Stage     string    `json:"stage"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

type RunNotifier interface {
	RunProgress(ctx context.Context, e RunEvent)
	RunCompleted(ctx context.Context, e RunEvent)
	RunFailed(ctx context.Context, e RunEvent)
	Close() error
}

type redisRunNotifier struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
}

func NewRedisRunNotifier(log *logger.Logger) (RunNotifier, error) {
	addr := strings.TrimSpace(envutil.Str("REDIS_ADDR", ""))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	channel := envutil.Str("REDIS_RUN_CHANNEL", "generation_runs")

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisRunNotifier{
		log:     log.With("service", "RedisRunNotifier"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (n *redisRunNotifier) publish(ctx context.Context, e RunEvent) {
	e.At = time.Now().UTC()
	raw, err := json.Marshal(e)
	if err != nil {
		n.log.Warn("run event marshal failed", "run_id", e.RunID, "error", err.Error())
		return
	}
	if err := n.rdb.Publish(ctx, n.channel, raw).Err(); err != nil {
		// Notifications are best effort; the run row is the source of truth.
		n.log.Warn("run event publish failed", "run_id", e.RunID, "error", err.Error())
	}
}

func (n *redisRunNotifier) RunProgress(ctx context.Context, e RunEvent) {
	e.Event = "progress"
	n.publish(ctx, e)
}

func (n *redisRunNotifier) RunCompleted(ctx context.Context, e RunEvent) {
	e.Event = "completed"
	n.publish(ctx, e)
}

func (n *redisRunNotifier) RunFailed(ctx context.Context, e RunEvent) {
	e.Event = "failed"
	n.publish(ctx, e)
}

func (n *redisRunNotifier) Close() error {
	return n.rdb.Close()
}

// NopRunNotifier is used in tests and when redis is not configured.
type NopRunNotifier struct{}

func (NopRunNotifier) RunProgress(context.Context, RunEvent)  {}
func (NopRunNotifier) RunCompleted(context.Context, RunEvent) {}
func (NopRunNotifier) RunFailed(context.Context, RunEvent)    {}
func (NopRunNotifier) Close() error                           { return nil }
