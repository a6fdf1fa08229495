package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// MaxAttempts bounds allocation retries after a unique key conflict.
const MaxAttempts = 3

// Reserver claims a document number across sessions before it is persisted.
type Reserver interface {
	Reserve(ctx context.Context, documentID string) (bool, error)
	Release(ctx context.Context, documentID string) error
}

// NoopReserver grants every number. The store unique key remains the last guard.
type NoopReserver struct{}

// Reserve always succeeds.
func (NoopReserver) Reserve(context.Context, string) (bool, error) { return true, nil }

// Release is a no-op.
func (NoopReserver) Release(context.Context, string) error { return nil }

// RedisReserver reserves numbers with SETNX so concurrent sessions skip numbers
// another session is about to write.
type RedisReserver struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReserver constructs a reserver whose claims expire after ttl.
func NewRedisReserver(client *redis.Client, ttl time.Duration) *RedisReserver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisReserver{client: client, ttl: ttl}
}

// Reserve claims documentID. It reports false when another session holds it.
func (r *RedisReserver) Reserve(ctx context.Context, documentID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, shared.DocumentNumberKey(documentID), time.Now().UTC().Format(time.RFC3339Nano), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("numbering: reserve %s: %w", documentID, err)
	}
	return ok, nil
}

// Release drops the claim on documentID.
func (r *RedisReserver) Release(ctx context.Context, documentID string) error {
	return r.client.Del(ctx, shared.DocumentNumberKey(documentID)).Err()
}

// Allocator persists numbered documents, retrying on number collisions.
type Allocator struct {
	reserver Reserver
	logger   *slog.Logger
}

// NewAllocator constructs an Allocator. A nil reserver disables reservations.
func NewAllocator(reserver Reserver, logger *slog.Logger) *Allocator {
	if reserver == nil {
		reserver = NoopReserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{reserver: reserver, logger: logger}
}

// Allocate computes the next number of type t for the year of at, builds the
// record with it and adds it to coll. A unique key conflict reloads coll when
// it is a Reloader and tries the next number, up to MaxAttempts.
func Allocate[T Numbered](ctx context.Context, a *Allocator, coll store.Collection[T], t documents.Type, at time.Time, build func(documentID string) T) (T, error) {
	var zero T
	existing, err := coll.GetAll(ctx)
	if err != nil {
		return zero, err
	}
	year := at.Year()
	seq := NextSequence(t, year, existing)
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		documentID := FormatDocumentID(t, year, seq)
		ok, err := a.reserver.Reserve(ctx, documentID)
		if err != nil {
			a.logger.Warn("number reservation unavailable", slog.String("documentId", documentID), slog.Any("error", err))
			ok = true
		}
		if !ok {
			lastErr = fmt.Errorf("%w: %s reserved by another session", shared.ErrConflict, documentID)
			seq++
			continue
		}
		saved, err := coll.Add(ctx, build(documentID))
		if err == nil {
			return saved, nil
		}
		_ = a.reserver.Release(ctx, documentID)
		if !errors.Is(err, shared.ErrConflict) {
			return zero, err
		}
		lastErr = err
		a.logger.Info("document number taken, retrying",
			slog.String("documentId", documentID), slog.Int("attempt", attempt))
		if r, ok := coll.(store.Reloader); ok {
			if rerr := r.Reload(ctx); rerr != nil {
				return zero, rerr
			}
		}
		existing, err = coll.GetAll(ctx)
		if err != nil {
			return zero, err
		}
		seq = max(NextSequence(t, year, existing), seq+1)
	}
	return zero, fmt.Errorf("numbering: allocate %s after %d attempts: %w", t, MaxAttempts, lastErr)
}

// AllocateCode persists an entity whose code is computed from the collection
// when blank. Explicit codes are not retried: a duplicate is the caller's error.
func AllocateCode[T store.Entity](ctx context.Context, coll store.Collection[T], prefix, code string, codeOf func(T) string, build func(code string) T) (T, error) {
	var zero T
	if code != "" {
		return coll.Add(ctx, build(code))
	}
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		existing, err := coll.GetAll(ctx)
		if err != nil {
			return zero, err
		}
		codes := make([]string, 0, len(existing))
		for _, item := range existing {
			codes = append(codes, codeOf(item))
		}
		saved, err := coll.Add(ctx, build(NextEntityCode(prefix, codes)))
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, shared.ErrConflict) {
			return zero, err
		}
		lastErr = err
		if r, ok := coll.(store.Reloader); ok {
			if rerr := r.Reload(ctx); rerr != nil {
				return zero, rerr
			}
		}
	}
	return zero, fmt.Errorf("numbering: allocate %s code after %d attempts: %w", prefix, MaxAttempts, lastErr)
}
