package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deliberately outside the search cache's "adminsearch:" namespace so a
// cache flush cannot drop delivery records.
const redisKeyPrefix = "adminsearch-idem:"

// RedisStore persists delivery records in Redis so replicas share replay
// state. Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a store over the supplied client.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	return &RedisStore{client: client}, nil
}

type redisRecord struct {
	Key             string              `json:"key"`
	Fingerprint     string              `json:"fingerprint"`
	Status          Status              `json:"status"`
	ResponseStatus  int                 `json:"response_status,omitempty"`
	ResponseHeaders map[string][]string `json:"response_headers,omitempty"`
	ResponseBody    []byte              `json:"response_body,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	ExpiresAt       time.Time           `json:"expires_at"`
}

func (r redisRecord) toRecord() Record {
	return Record{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          r.Status,
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

// Reserve implements Store.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	fresh := redisRecord{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	payload, err := json.Marshal(fresh)
	if err != nil {
		return Reservation{}, fmt.Errorf("marshal delivery record: %w", err)
	}

	id := s.redisKey(key)
	acquired, err := s.client.SetNX(ctx, id, payload, ttl).Result()
	if err != nil {
		return Reservation{}, fmt.Errorf("reserve delivery key: %w", err)
	}
	if acquired {
		return Reservation{State: ReservationStateNew, Record: fresh.toRecord()}, nil
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if existing == nil {
		// The record expired between SetNX and Get. Treat the key as ours.
		if err := s.client.Set(ctx, id, payload, ttl).Err(); err != nil {
			return Reservation{}, fmt.Errorf("reserve delivery key: %w", err)
		}
		return Reservation{State: ReservationStateNew, Record: fresh.toRecord()}, nil
	}

	if existing.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if existing.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: existing.toRecord()}, nil
	}
	return Reservation{State: ReservationStatePending, Record: existing.toRecord()}, nil
}

// SaveResponse implements Store.
func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	id := s.redisKey(key)
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil && existing.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}

	record := redisRecord{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if existing != nil && !existing.CreatedAt.IsZero() {
		record.CreatedAt = existing.CreatedAt
	}
	record.ResponseStatus = resp.Status
	record.ResponseHeaders = sanitizeHeaders(resp.Headers)
	if len(resp.Body) > 0 {
		record.ResponseBody = append([]byte(nil), resp.Body...)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal delivery record: %w", err)
	}
	if err := s.client.Set(ctx, id, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store delivery record: %w", err)
	}
	return nil
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, key, fingerprint string) error {
	id := s.redisKey(key)
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil && existing.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	if err := s.client.Del(ctx, id).Err(); err != nil {
		return fmt.Errorf("release delivery key: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, id string) (*redisRecord, error) {
	raw, err := s.client.Get(ctx, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load delivery record: %w", err)
	}
	var record redisRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode delivery record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) redisKey(key string) string {
	return redisKeyPrefix + recordID(key)
}
