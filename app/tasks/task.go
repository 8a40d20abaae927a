package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

type Type string

const (
	TypeRefreshFeed    Type = "refresh_feed"
	TypeExtractContent Type = "extract_content"
	TypePurgeArticles  Type = "purge_articles"
)

const defaultMaxRetries = 3

// Task is a unit of background work executed by the scheduler's worker pool.
type Task interface {
	Execute(ctx context.Context) error
	ID() string
	Type() Type
	FeedID() string
	RetryCount() int
	MaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	Start()
	Duration() time.Duration
}

type base struct {
	id         string
	taskType   Type
	feedID     string
	retryCount int
	maxRetries int
	startedAt  *time.Time
}

func newBase(taskType Type, feedID string) base {
	return base{
		id:         fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Intn(10000)),
		taskType:   taskType,
		feedID:     feedID,
		maxRetries: defaultMaxRetries,
	}
}

func (b *base) ID() string {
	return b.id
}

func (b *base) Type() Type {
	return b.taskType
}

func (b *base) FeedID() string {
	return b.feedID
}

func (b *base) RetryCount() int {
	return b.retryCount
}

func (b *base) MaxRetries() int {
	return b.maxRetries
}

func (b *base) IncrementRetryCount() {
	b.retryCount++
}

func (b *base) CanRetry() bool {
	return b.retryCount < b.maxRetries
}

func (b *base) Start() {
	now := time.Now()
	b.startedAt = &now
}

func (b *base) Duration() time.Duration {
	if b.startedAt == nil {
		return 0
	}
	return time.Since(*b.startedAt)
}
