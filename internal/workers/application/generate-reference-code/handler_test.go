// internal/workers/application/generate-reference-code/handler_test.go
package generatereferencecode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/models"
	"lending-workers/internal/store"
)

type mockStore struct {
	// collisions is the number of AssignReferenceCode calls that fail with
	// a collision before one succeeds.
	collisions int
	calls      int
	assigned   string
	existing   *models.Application
	alwaysErr  error
}

func (m *mockStore) GetBySession(ctx context.Context, sessionID string) (*models.Application, error) {
	if m.existing == nil {
		return nil, store.ErrNotFound
	}
	return m.existing, nil
}

func (m *mockStore) AssignReferenceCode(ctx context.Context, sessionID, code string) error {
	m.calls++
	if m.alwaysErr != nil {
		return m.alwaysErr
	}
	if m.calls <= m.collisions {
		return store.ErrCodeCollision
	}
	m.assigned = code
	return nil
}

func newTestHandler(t *testing.T, st *mockStore) *Handler {
	return NewHandler(LoadConfig(), st, logger.NewTestLogger(t))
}

func TestExecute_AssignsCode(t *testing.T) {
	st := &mockStore{}
	h := newTestHandler(t, st)

	output, err := h.Execute(context.Background(), &Input{SessionID: "session-abc"})

	require.NoError(t, err)
	assert.Len(t, output.ReferenceCode, 6)
	assert.Equal(t, st.assigned, output.ReferenceCode)
	assert.False(t, output.AlreadyAssigned)
	assert.Equal(t, 1, st.calls)
}

func TestExecute_RetriesOnCollision(t *testing.T) {
	st := &mockStore{collisions: 3}
	h := newTestHandler(t, st)

	output, err := h.Execute(context.Background(), &Input{SessionID: "session-abc"})

	require.NoError(t, err)
	assert.NotEmpty(t, output.ReferenceCode)
	assert.Equal(t, 4, st.calls)
}

func TestExecute_ExhaustsAfterMaxAttempts(t *testing.T) {
	st := &mockStore{alwaysErr: store.ErrCodeCollision}
	h := newTestHandler(t, st)

	_, err := h.Execute(context.Background(), &Input{SessionID: "session-abc"})

	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeReferenceExhausted))
	assert.Equal(t, LoadConfig().MaxAttempts, st.calls)
}

func TestExecute_ExistingCodeIsReturnedUnchanged(t *testing.T) {
	st := &mockStore{
		alwaysErr: store.ErrCodeAlreadySet,
		existing: &models.Application{
			SessionID:     "session-abc",
			ReferenceCode: "OLD456",
		},
	}
	h := newTestHandler(t, st)

	output, err := h.Execute(context.Background(), &Input{SessionID: "session-abc"})

	require.NoError(t, err)
	assert.Equal(t, "OLD456", output.ReferenceCode)
	assert.True(t, output.AlreadyAssigned)
}

func TestExecute_UnknownSession(t *testing.T) {
	st := &mockStore{alwaysErr: store.ErrNotFound}
	h := newTestHandler(t, st)

	_, err := h.Execute(context.Background(), &Input{SessionID: "missing"})

	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeApplicationNotFound))
}

func TestExecute_MissingSessionID(t *testing.T) {
	h := newTestHandler(t, &mockStore{})

	_, err := h.Execute(context.Background(), &Input{})

	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeValidationFailed))
}

func TestGeneratedCodesAreUppercaseAlphanumeric(t *testing.T) {
	st := &mockStore{}
	h := newTestHandler(t, st)

	output, err := h.Execute(context.Background(), &Input{SessionID: "session-abc"})
	require.NoError(t, err)

	for _, r := range output.ReferenceCode {
		ok := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		assert.True(t, ok, "unexpected character %q", r)
	}
}
