// Package cache holds the invalidation counter bumped on document mutations
// and the LRU result cache callers key with (index version, buster).
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// DefaultBuster is the value reported before the first bump.
const DefaultBuster = "0"

// Buster is a monotonic invalidation counter. Every Bump changes the value
// returned by Value.
type Buster interface {
	Bump(ctx context.Context) error
	Value(ctx context.Context) (string, error)
}

// NextBuster returns the value that follows prev at time now: the current
// unix second, forced past prev so consecutive bumps never repeat.
func NextBuster(prev string, now time.Time) string {
	next := now.Unix()
	if p, err := strconv.ParseInt(prev, 10, 64); err == nil && next <= p {
		next = p + 1
	}
	return strconv.FormatInt(next, 10)
}

// MemoryBuster is a process-local Buster.
type MemoryBuster struct {
	mu    sync.Mutex
	value string
	now   func() time.Time
}

var _ Buster = (*MemoryBuster)(nil)

// NewMemoryBuster creates a buster at DefaultBuster.
func NewMemoryBuster() *MemoryBuster {
	return &MemoryBuster{now: time.Now}
}

// Bump implements Buster.
func (b *MemoryBuster) Bump(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.value = NextBuster(b.current(), b.now())
	slog.Debug("buster_bumped", slog.String("value", b.value))
	return nil
}

// Value implements Buster.
func (b *MemoryBuster) Value(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current(), nil
}

func (b *MemoryBuster) current() string {
	if b.value == "" {
		return DefaultBuster
	}
	return b.value
}

// CurrentValue returns the buster value, or DefaultBuster if it cannot be read.
func CurrentValue(ctx context.Context, b Buster) string {
	v, err := b.Value(ctx)
	if err != nil {
		slog.Warn("buster_unreadable", slog.String("error", err.Error()))
		return DefaultBuster
	}
	if v == "" {
		return DefaultBuster
	}
	return v
}
