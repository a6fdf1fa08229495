package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Marker is the persisted progress of one pipeline run.
type Marker struct {
	Kind       string          `json:"kind"`
	SourceID   string          `json:"sourceId"`
	RunID      string          `json:"runId"`
	StartedAt  time.Time       `json:"startedAt"`
	Completed  []CompletedStep `json:"completed"`
	FailedStep string          `json:"failedStep,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Failed reports whether the run stopped on a step error.
func (m Marker) Failed() bool { return m.FailedStep != "" }

// ProgressTracker claims a source document for one pipeline run and records step progress.
type ProgressTracker interface {
	Begin(ctx context.Context, kind, sourceID string) (Marker, error)
	Record(ctx context.Context, marker Marker) error
	Fail(ctx context.Context, marker Marker) error
	Finish(ctx context.Context, marker Marker) error
	Stale(ctx context.Context, olderThan time.Duration) ([]Marker, error)
}

func newMarker(kind, sourceID string, now time.Time) Marker {
	return Marker{Kind: kind, SourceID: sourceID, RunID: uuid.NewString(), StartedAt: now.UTC()}
}

// MemoryProgress keeps markers in process. Used when redis is disabled and in tests.
type MemoryProgress struct {
	mu      sync.Mutex
	active  map[string]Marker
	failed  map[string]Marker
	nowFunc func() time.Time
}

// NewMemoryProgress constructs an empty tracker.
func NewMemoryProgress() *MemoryProgress {
	return &MemoryProgress{active: map[string]Marker{}, failed: map[string]Marker{}, nowFunc: time.Now}
}

// Begin claims the source or returns ErrPipelineBusy.
func (p *MemoryProgress) Begin(_ context.Context, kind, sourceID string) (Marker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := PipelineKey(kind, sourceID)
	if _, ok := p.active[key]; ok {
		return Marker{}, fmt.Errorf("%w: %s", ErrPipelineBusy, key)
	}
	m := newMarker(kind, sourceID, p.nowFunc())
	p.active[key] = m
	delete(p.failed, key)
	return m, nil
}

// Record stores the completed steps of an active run.
func (p *MemoryProgress) Record(_ context.Context, marker Marker) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := PipelineKey(marker.Kind, marker.SourceID)
	if cur, ok := p.active[key]; ok && cur.RunID == marker.RunID {
		p.active[key] = marker
	}
	return nil
}

// Fail releases the claim and keeps the failed marker for inspection.
func (p *MemoryProgress) Fail(_ context.Context, marker Marker) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := PipelineKey(marker.Kind, marker.SourceID)
	delete(p.active, key)
	p.failed[key] = marker
	return nil
}

// Finish releases the claim.
func (p *MemoryProgress) Finish(_ context.Context, marker Marker) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := PipelineKey(marker.Kind, marker.SourceID)
	if cur, ok := p.active[key]; ok && cur.RunID == marker.RunID {
		delete(p.active, key)
	}
	return nil
}

// Stale lists failed runs and active runs older than the threshold.
func (p *MemoryProgress) Stale(_ context.Context, olderThan time.Duration) ([]Marker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := p.nowFunc().Add(-olderThan)
	var out []Marker
	for _, m := range p.failed {
		out = append(out, m)
	}
	for _, m := range p.active {
		if m.StartedAt.Before(cutoff) {
			out = append(out, m)
		}
	}
	sortMarkers(out)
	return out, nil
}

// RedisProgress stores markers in redis so concurrent sessions see each other's claims.
type RedisProgress struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProgress constructs a tracker whose markers expire after ttl.
func NewRedisProgress(client *redis.Client, ttl time.Duration) *RedisProgress {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisProgress{client: client, ttl: ttl}
}

const failedKeyPrefix = "pipeline-failed:"

// Begin claims the source with SETNX.
func (p *RedisProgress) Begin(ctx context.Context, kind, sourceID string) (Marker, error) {
	m := newMarker(kind, sourceID, time.Now())
	raw, err := json.Marshal(m)
	if err != nil {
		return Marker{}, err
	}
	key := PipelineKey(kind, sourceID)
	ok, err := p.client.SetNX(ctx, key, raw, p.ttl).Result()
	if err != nil {
		return Marker{}, fmt.Errorf("shared: claim %s: %w", key, err)
	}
	if !ok {
		return Marker{}, fmt.Errorf("%w: %s", ErrPipelineBusy, key)
	}
	p.client.Del(ctx, failedKeyPrefix+key)
	return m, nil
}

// Record overwrites the marker while the run still owns the claim.
func (p *RedisProgress) Record(ctx context.Context, marker Marker) error {
	key := PipelineKey(marker.Kind, marker.SourceID)
	if !p.owns(ctx, key, marker.RunID) {
		return nil
	}
	raw, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, key, raw, redis.KeepTTL).Err()
}

// Fail moves the marker to the failed namespace and releases the claim.
func (p *RedisProgress) Fail(ctx context.Context, marker Marker) error {
	key := PipelineKey(marker.Kind, marker.SourceID)
	raw, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, failedKeyPrefix+key, raw, p.ttl)
	pipe.Del(ctx, key)
	_, err = pipe.Exec(ctx)
	return err
}

// Finish releases the claim.
func (p *RedisProgress) Finish(ctx context.Context, marker Marker) error {
	key := PipelineKey(marker.Kind, marker.SourceID)
	if !p.owns(ctx, key, marker.RunID) {
		return nil
	}
	return p.client.Del(ctx, key).Err()
}

// Stale scans failed markers and claims older than the threshold.
func (p *RedisProgress) Stale(ctx context.Context, olderThan time.Duration) ([]Marker, error) {
	cutoff := time.Now().Add(-olderThan)
	var out []Marker
	for _, pattern := range []string{"pipeline:*", failedKeyPrefix + "*"} {
		iter := p.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			raw, err := p.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return nil, err
			}
			var m Marker
			if err := json.Unmarshal(raw, &m); err != nil {
				continue
			}
			if strings.HasPrefix(key, failedKeyPrefix) || m.StartedAt.Before(cutoff) {
				out = append(out, m)
			}
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
	}
	sortMarkers(out)
	return out, nil
}

func (p *RedisProgress) owns(ctx context.Context, key, runID string) bool {
	raw, err := p.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	var cur Marker
	if err := json.Unmarshal(raw, &cur); err != nil {
		return false
	}
	return cur.RunID == runID
}

func sortMarkers(markers []Marker) {
	sort.Slice(markers, func(i, j int) bool {
		return markers[i].StartedAt.Before(markers[j].StartedAt)
	})
}
