package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/model"
	"github.com/redis/go-redis/v9"
)

var ErrResultNotFound = errors.New("result not found or expired")

// AnalysisResult is the persisted outcome of a successful submission.
type AnalysisResult struct {
	SessionID      string              `json:"session_id"`
	Tenant         string              `json:"tenant"`
	Document       model.Document      `json:"document"`
	Clauses        []model.Clause      `json:"clauses"`
	SkippedRecords int                 `json:"skipped_records"`
	Aggregate      model.AggregateView `json:"aggregate"`
	CompletedAt    time.Time           `json:"completed_at"`
}

// NewAnalysisResult builds the record for a succeeded snapshot.
func NewAnalysisResult(session *Session, snap Snapshot) AnalysisResult {
	result := AnalysisResult{
		SessionID:      session.ID,
		Tenant:         session.Tenant,
		Clauses:        snap.Clauses,
		SkippedRecords: snap.SkippedRecords,
		Aggregate:      Aggregate(snap.Clauses),
		CompletedAt:    time.Now(),
	}
	if snap.Document != nil {
		result.Document = *snap.Document
	}
	return result
}

// ResultStore persists analysis results in Redis so they outlive the
// in-memory session.
type ResultStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewResultStore connects to redisURL and checks the connection.
func NewResultStore(redisURL string, ttl time.Duration) (*ResultStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewResultStoreWithClient(client, ttl), nil
}

// NewResultStoreWithClient creates a store from an existing Redis client
func NewResultStoreWithClient(client *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{
		client: client,
		prefix: "result:",
		ttl:    ttl,
	}
}

func (s *ResultStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *ResultStore) Save(ctx context.Context, result AnalysisResult) error {
	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if err := s.client.Set(ctx, s.key(result.SessionID), jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// Get returns the stored result, or ErrResultNotFound once it has expired.
func (s *ResultStore) Get(ctx context.Context, sessionID string) (*AnalysisResult, error) {
	jsonData, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup result: %w", err)
	}

	var result AnalysisResult
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

func (s *ResultStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *ResultStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *ResultStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
