// internal/jobstatus/cache.go

// Package jobstatus tracks document-generation job state in Redis so any
// worker instance can answer status queries and honor cancellations.
package jobstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lending-workers/internal/models"
)

const keyPrefix = "docgen:status:"

// ErrNotFound means no job status is recorded for the session, either because
// no generation was requested or the record expired.
var ErrNotFound = errors.New("job status not found")

// ErrTerminal means the job already reached a terminal state and its status
// can no longer change.
var ErrTerminal = errors.New("job already in terminal state")

// Record is the per-session job status entry. One generation job per session
// at a time; a new job for the same session overwrites the record.
type Record struct {
	JobID     string                 `json:"jobId"`
	Status    models.JobStatus       `json:"status"`
	Attempts  int                    `json:"attempts"`
	UpdatedAt time.Time              `json:"updatedAt"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Cache stores job status records with a sliding TTL. Every write refreshes
// the expiry so a record outlives its job by the configured window.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, ttl: ttl, now: time.Now}
}

func statusKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Set writes the record for a session, refreshing the TTL.
func (c *Cache) Set(ctx context.Context, sessionID string, rec *Record) error {
	rec.UpdatedAt = c.now().UTC()
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job status: %w", err)
	}
	if err := c.client.Set(ctx, statusKey(sessionID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return nil
}

// Get reads the record for a session.
func (c *Cache) Get(ctx context.Context, sessionID string) (*Record, error) {
	payload, err := c.client.Get(ctx, statusKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job status: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal job status: %w", err)
	}
	return &rec, nil
}

// Cancel marks the job cancelled unless it already reached a terminal state.
// The check-and-set runs under WATCH so a concurrent completion wins over a
// racing cancel.
func (c *Cache) Cancel(ctx context.Context, sessionID string) error {
	key := statusKey(sessionID)

	txn := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var rec Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return fmt.Errorf("unmarshal job status: %w", err)
		}
		if rec.Status.IsTerminal() {
			return ErrTerminal
		}

		rec.Status = models.JobCancelled
		rec.UpdatedAt = c.now().UTC()
		updated, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("marshal job status: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, c.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := c.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("cancel job status: too many conflicts")
}

// IsCancelled reports whether a cancel was requested for the session.
// Missing records count as not cancelled.
func (c *Cache) IsCancelled(ctx context.Context, sessionID string) (bool, error) {
	rec, err := c.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return rec.Status == models.JobCancelled, nil
}

// Delete removes the record. Used by tooling, not the job lifecycle; records
// normally age out via TTL.
func (c *Cache) Delete(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, statusKey(sessionID)).Err()
}
