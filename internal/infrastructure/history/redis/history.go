// Package redis keeps running per-type field statistics and content
// fingerprints of finished documents for anomaly detection.
package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/kirillkom/docflow/internal/core/anomaly"
	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/infrastructure/resilience"
)

type History struct {
	client         *backend.Client
	prefix         string
	fingerprintTTL time.Duration
	executor       *resilience.Executor
}

type Option func(*History)

func WithPrefix(prefix string) Option {
	return func(h *History) { h.prefix = prefix }
}

// WithFingerprintTTL bounds how long a fingerprint marks later uploads as duplicates.
func WithFingerprintTTL(ttl time.Duration) Option {
	return func(h *History) { h.fingerprintTTL = ttl }
}

func WithResilienceExecutor(executor *resilience.Executor) Option {
	return func(h *History) { h.executor = executor }
}

func New(address, password string, db int, opts ...Option) *History {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

func NewFromClient(client *backend.Client, opts ...Option) *History {
	h := &History{client: client, prefix: "docflow:history:"}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *History) Close() error {
	return h.client.Close()
}

func (h *History) statsKey(documentType, field string) string {
	return h.prefix + "stats:" + documentType + ":" + field
}

func (h *History) fingerprintKey(fingerprint string) string {
	return h.prefix + "fp:" + fingerprint
}

func (h *History) recordedKey(documentID string) string {
	return h.prefix + "recorded:" + documentID
}

func (h *History) Snapshot(ctx context.Context, query domain.HistoryQuery) (domain.HistorySnapshot, error) {
	snapshot, err := resilience.Call(ctx, h.executor, "redis.snapshot", func(callCtx context.Context) (domain.HistorySnapshot, error) {
		return h.snapshot(callCtx, query)
	}, classifyRedisError)
	if err != nil {
		return domain.HistorySnapshot{}, wrapTemporaryIfNeeded("history snapshot", err)
	}
	return snapshot, nil
}

func (h *History) snapshot(ctx context.Context, query domain.HistoryQuery) (domain.HistorySnapshot, error) {
	out := domain.HistorySnapshot{DocumentType: query.DocumentType, Fields: map[string]domain.FieldStats{}}

	pipe := h.client.Pipeline()
	stats := make(map[string]*backend.SliceCmd, len(query.Fields))
	for _, field := range query.Fields {
		stats[field] = pipe.HMGet(ctx, h.statsKey(query.DocumentType, field), "count", "sum", "sumsq")
	}
	var owner *backend.StringCmd
	if query.Fingerprint != "" {
		owner = pipe.Get(ctx, h.fingerprintKey(query.Fingerprint))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return domain.HistorySnapshot{}, fmt.Errorf("redis snapshot: %w", err)
	}

	for field, cmd := range stats {
		vals, err := cmd.Result()
		if err != nil {
			return domain.HistorySnapshot{}, fmt.Errorf("redis stats %s: %w", field, err)
		}
		if fs, ok := fieldStats(vals); ok {
			out.Fields[field] = fs
		}
	}
	if owner != nil {
		id, err := owner.Result()
		switch {
		case errors.Is(err, backend.Nil):
		case err != nil:
			return domain.HistorySnapshot{}, fmt.Errorf("redis fingerprint: %w", err)
		case id != query.DocumentID:
			out.DuplicateOf = id
		}
	}
	return out, nil
}

// Record adds the numeric fields of state to the running statistics and
// claims its fingerprint. Recording the same document twice is a no-op.
func (h *History) Record(ctx context.Context, state *domain.DocumentState) error {
	_, err := resilience.Call(ctx, h.executor, "redis.record", func(callCtx context.Context) (struct{}, error) {
		return struct{}{}, h.record(callCtx, state)
	}, classifyRedisError)
	return wrapTemporaryIfNeeded("history record", err)
}

func (h *History) record(ctx context.Context, state *domain.DocumentState) error {
	if state.DocumentType == "" {
		return nil
	}
	first, err := h.client.SetNX(ctx, h.recordedKey(state.DocumentID), state.WorkflowID, 0).Result()
	if err != nil {
		return fmt.Errorf("redis mark recorded: %w", err)
	}
	if !first {
		return nil
	}

	data := state.Data()
	_, err = h.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		for _, field := range NumericFields(data) {
			v, _ := data.Float(field)
			key := h.statsKey(state.DocumentType, field)
			pipe.HIncrBy(ctx, key, "count", 1)
			pipe.HIncrByFloat(ctx, key, "sum", v)
			pipe.HIncrByFloat(ctx, key, "sumsq", v*v)
		}
		pipe.SetNX(ctx, h.fingerprintKey(anomaly.Fingerprint(state)), state.DocumentID, h.fingerprintTTL)
		return nil
	})
	if err != nil {
		if delErr := h.client.Del(ctx, h.recordedKey(state.DocumentID)).Err(); delErr != nil {
			return fmt.Errorf("redis record: %w (unmark: %v)", err, delErr)
		}
		return fmt.Errorf("redis record: %w", err)
	}
	return nil
}

// NumericFields lists the keys of data holding numbers, sorted.
func NumericFields(data domain.Fields) []string {
	var out []string
	for field, v := range data {
		switch v.(type) {
		case float64, float32, int, int64, int32:
			out = append(out, field)
		}
	}
	sort.Strings(out)
	return out
}

func fieldStats(vals []any) (domain.FieldStats, bool) {
	if len(vals) != 3 || vals[0] == nil {
		return domain.FieldStats{}, false
	}
	nums := make([]float64, 3)
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			return domain.FieldStats{}, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.FieldStats{}, false
		}
		nums[i] = f
	}
	count, sum, sumsq := nums[0], nums[1], nums[2]
	if count <= 0 {
		return domain.FieldStats{}, false
	}
	mean := sum / count
	variance := sumsq/count - mean*mean
	if variance < 0 {
		variance = 0
	}
	return domain.FieldStats{Count: int64(count), Mean: mean, StdDev: math.Sqrt(variance)}, true
}
