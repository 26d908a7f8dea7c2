// internal/store/application_store.go

// Package store is the persistence layer for applications and their
// append-only transition history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lending-workers/internal/common/logger"
	"lending-workers/internal/models"
)

var (
	// ErrNotFound means no application matched the lookup key.
	ErrNotFound = errors.New("application not found")
	// ErrCodeCollision means the reference code is already assigned to
	// another application. Callers retry with a fresh code.
	ErrCodeCollision = errors.New("reference code already assigned")
	// ErrCodeAlreadySet means this application already carries a code.
	// Reference codes are immutable once assigned.
	ErrCodeAlreadySet = errors.New("reference code already set for application")
)

// ApplicationStore persists applications in Postgres. Concurrent writes to the
// same session are last-write-wins; the transition log still records every
// accepted step change.
type ApplicationStore struct {
	db      *sql.DB
	auditor TransitionAuditor
	logger  logger.Logger
}

// TransitionAuditor indexes accepted transitions for admin-side search.
// Indexing is fire-and-forget; failures are logged, never propagated.
type TransitionAuditor interface {
	IndexTransition(ctx context.Context, t *models.Transition) error
}

func New(db *sql.DB, auditor TransitionAuditor, log logger.Logger) *ApplicationStore {
	return &ApplicationStore{
		db:      db,
		auditor: auditor,
		logger:  log.WithFields(map[string]interface{}{"component": "application-store"}),
	}
}

// SaveState upserts the application row keyed by session id.
func (s *ApplicationStore) SaveState(ctx context.Context, app *models.Application) error {
	formData, err := json.Marshal(app.FormData)
	if err != nil {
		return fmt.Errorf("marshal form data: %w", err)
	}
	metadata, err := json.Marshal(app.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applications (session_id, user_id, channel, current_step, form_data, metadata, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW(), $7)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			channel = EXCLUDED.channel,
			current_step = EXCLUDED.current_step,
			form_data = EXCLUDED.form_data,
			metadata = EXCLUDED.metadata,
			updated_at = NOW(),
			expires_at = EXCLUDED.expires_at`,
		app.SessionID, app.UserID, string(app.Channel), string(app.CurrentStep),
		formData, metadata, app.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save application state: %w", err)
	}
	return nil
}

const applicationColumns = `session_id, reference_code, user_id, channel, current_step, form_data, metadata, created_at, updated_at, expires_at`

// GetBySession loads the application for a session id.
func (s *ApplicationStore) GetBySession(ctx context.Context, sessionID string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE session_id = $1`, sessionID)
	return scanApplication(row)
}

// GetByReferenceCode loads the application carrying the given code.
func (s *ApplicationStore) GetByReferenceCode(ctx context.Context, code string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE reference_code = $1`, code)
	return scanApplication(row)
}

// GetByNationalID looks up by the national identifier inside form data.
// Used as the fallback when a lookup key is not a known reference code.
func (s *ApplicationStore) GetByNationalID(ctx context.Context, nationalID string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE UPPER(REPLACE(REPLACE(form_data->'formResponses'->>'nationalIdNumber', '-', ''), ' ', '')) = $1
		 ORDER BY updated_at DESC LIMIT 1`, nationalID)
	return scanApplication(row)
}

// AssignReferenceCode sets the code on an application that has none yet.
// Codes are immutable once set and globally unique; a unique-constraint
// violation surfaces as ErrCodeCollision so the caller can retry with a
// fresh code instead of locking.
func (s *ApplicationStore) AssignReferenceCode(ctx context.Context, sessionID, code string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications SET reference_code = $1, updated_at = NOW()
		WHERE session_id = $2 AND reference_code IS NULL`, code, sessionID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrCodeCollision
		}
		return fmt.Errorf("assign reference code: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign reference code: %w", err)
	}
	if affected == 0 {
		// Either the session does not exist or a code is already set.
		existing, lookupErr := s.GetBySession(ctx, sessionID)
		if lookupErr != nil {
			return lookupErr
		}
		if existing.ReferenceCode != "" {
			return ErrCodeAlreadySet
		}
		return ErrNotFound
	}
	return nil
}

// AppendTransition records one accepted step change. Exactly one record per
// accepted change; rejected changes never reach this method.
func (s *ApplicationStore) AppendTransition(ctx context.Context, t *models.Transition) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return fmt.Errorf("marshal transition payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO application_transitions (id, session_id, from_step, to_step, channel, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		t.ID, t.SessionID, string(t.FromStep), string(t.ToStep), string(t.Channel), payload)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}

	if s.auditor != nil {
		if err := s.auditor.IndexTransition(ctx, t); err != nil {
			s.logger.Warn("transition audit indexing failed", map[string]interface{}{
				"sessionId": t.SessionID,
				"error":     err,
			})
		}
	}
	return nil
}

// ListTransitions returns the audit trail for a session, oldest first.
func (s *ApplicationStore) ListTransitions(ctx context.Context, sessionID string) ([]*models.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, from_step, to_step, channel, payload, created_at
		FROM application_transitions
		WHERE session_id = $1
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*models.Transition
	for rows.Next() {
		var t models.Transition
		var fromStep, toStep, channel string
		var payload []byte
		if err := rows.Scan(&t.ID, &t.SessionID, &fromStep, &toStep, &channel, &payload, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.FromStep = models.Step(fromStep)
		t.ToStep = models.Step(toStep)
		t.Channel = models.Channel(channel)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal transition payload: %w", err)
			}
		}
		transitions = append(transitions, &t)
	}
	return transitions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var app models.Application
	var refCode sql.NullString
	var channel, step string
	var formData, metadata []byte
	var expiresAt sql.NullTime

	err := row.Scan(&app.SessionID, &refCode, &app.UserID, &channel, &step,
		&formData, &metadata, &app.CreatedAt, &app.UpdatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}

	app.ReferenceCode = refCode.String
	app.Channel = models.Channel(channel)
	app.CurrentStep = models.Step(step)
	if expiresAt.Valid {
		app.ExpiresAt = &expiresAt.Time
	}
	if len(formData) > 0 {
		if err := json.Unmarshal(formData, &app.FormData); err != nil {
			return nil, fmt.Errorf("unmarshal form data: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &app.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &app, nil
}
