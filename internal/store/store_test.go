// internal/store/store_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-workers/internal/common/logger"
	"lending-workers/internal/models"
)

func newTestStore(t *testing.T) (*ApplicationStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil, logger.NewTestLogger(t)), mock
}

func TestSaveState_InsertsNewApplication(t *testing.T) {
	store, mock := newTestStore(t)

	app := &models.Application{
		SessionID:   "session-abc",
		UserID:      "user-1",
		Channel:     models.ChannelWeb,
		CurrentStep: models.StepLanguage,
		FormData:    map[string]interface{}{"language": "en"},
	}

	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs(app.SessionID, app.UserID, "web", "language",
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SaveState(context.Background(), app)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveState_UpsertOverwritesExistingRow(t *testing.T) {
	store, mock := newTestStore(t)

	app := &models.Application{
		SessionID:   "session-abc",
		UserID:      "user-1",
		Channel:     models.ChannelMessaging,
		CurrentStep: models.StepProduct,
		FormData:    map[string]interface{}{"intent": "loan"},
	}

	// Same statement handles insert and update via the conflict clause.
	mock.ExpectExec(`ON CONFLICT \(session_id\) DO UPDATE`).
		WithArgs(app.SessionID, app.UserID, "messaging", "product",
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SaveState(context.Background(), app)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBySession(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"session_id", "reference_code", "user_id", "channel", "current_step",
		"form_data", "metadata", "created_at", "updated_at", "expires_at",
	}).AddRow("session-abc", "AB12CD", "user-1", "web", "completed",
		[]byte(`{"formResponses":{"firstName":"Tendai"}}`), []byte(`{}`), now, now, nil)

	mock.ExpectQuery(`SELECT .+ FROM applications WHERE session_id = \$1`).
		WithArgs("session-abc").
		WillReturnRows(rows)

	app, err := store.GetBySession(context.Background(), "session-abc")
	require.NoError(t, err)
	assert.Equal(t, "AB12CD", app.ReferenceCode)
	assert.Equal(t, models.StepCompleted, app.CurrentStep)
	assert.Equal(t, models.ChannelWeb, app.Channel)
	assert.Equal(t, "Tendai", app.FormResponses()["firstName"])
}

func TestGetBySession_NotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT .+ FROM applications WHERE session_id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}))

	_, err := store.GetBySession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByReferenceCode(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"session_id", "reference_code", "user_id", "channel", "current_step",
		"form_data", "metadata", "created_at", "updated_at", "expires_at",
	}).AddRow("session-abc", "X9Y8Z7", "user-1", "ussd", "in_review",
		[]byte(`{}`), nil, now, now, nil)

	mock.ExpectQuery(`SELECT .+ FROM applications WHERE reference_code = \$1`).
		WithArgs("X9Y8Z7").
		WillReturnRows(rows)

	app, err := store.GetByReferenceCode(context.Background(), "X9Y8Z7")
	require.NoError(t, err)
	assert.Equal(t, "session-abc", app.SessionID)
	assert.Equal(t, models.StepInReview, app.CurrentStep)
}

func TestAssignReferenceCode(t *testing.T) {
	t.Run("assigns when no code set", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectExec(`UPDATE applications SET reference_code = \$1`).
			WithArgs("AB12CD", "session-abc").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.AssignReferenceCode(context.Background(), "session-abc", "AB12CD")
		assert.NoError(t, err)
	})

	t.Run("unique violation surfaces as collision", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectExec(`UPDATE applications SET reference_code = \$1`).
			WithArgs("AB12CD", "session-abc").
			WillReturnError(&pq.Error{Code: "23505"})

		err := store.AssignReferenceCode(context.Background(), "session-abc", "AB12CD")
		assert.ErrorIs(t, err, ErrCodeCollision)
	})

	t.Run("existing code is immutable", func(t *testing.T) {
		store, mock := newTestStore(t)
		now := time.Now()

		mock.ExpectExec(`UPDATE applications SET reference_code = \$1`).
			WithArgs("NEW123", "session-abc").
			WillReturnResult(sqlmock.NewResult(0, 0))

		rows := sqlmock.NewRows([]string{
			"session_id", "reference_code", "user_id", "channel", "current_step",
			"form_data", "metadata", "created_at", "updated_at", "expires_at",
		}).AddRow("session-abc", "OLD456", "user-1", "web", "completed",
			[]byte(`{}`), nil, now, now, nil)
		mock.ExpectQuery(`SELECT .+ FROM applications WHERE session_id = \$1`).
			WithArgs("session-abc").
			WillReturnRows(rows)

		err := store.AssignReferenceCode(context.Background(), "session-abc", "NEW123")
		assert.ErrorIs(t, err, ErrCodeAlreadySet)
	})

	t.Run("unknown session", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectExec(`UPDATE applications SET reference_code = \$1`).
			WithArgs("AB12CD", "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .+ FROM applications WHERE session_id = \$1`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"session_id"}))

		err := store.AssignReferenceCode(context.Background(), "missing", "AB12CD")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAppendTransition(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO application_transitions`).
		WithArgs(sqlmock.AnyArg(), "session-abc", "form", "completed", "web", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tr := &models.Transition{
		SessionID: "session-abc",
		FromStep:  models.StepForm,
		ToStep:    models.StepCompleted,
		Channel:   models.ChannelWeb,
	}
	err := store.AppendTransition(context.Background(), tr)
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransitions(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "session_id", "from_step", "to_step", "channel", "payload", "created_at",
	}).
		AddRow("t1", "session-abc", "language", "intent", "web", []byte(`{}`), now.Add(-time.Minute)).
		AddRow("t2", "session-abc", "intent", "employer", "web", nil, now)

	mock.ExpectQuery(`SELECT .+ FROM application_transitions`).
		WithArgs("session-abc").
		WillReturnRows(rows)

	transitions, err := store.ListTransitions(context.Background(), "session-abc")
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, models.StepLanguage, transitions[0].FromStep)
	assert.Equal(t, models.StepEmployer, transitions[1].ToStep)
}
