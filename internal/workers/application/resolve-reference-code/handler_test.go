// internal/workers/application/resolve-reference-code/handler_test.go
package resolvereferencecode

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
	byCode       map[string]*models.Application
	byNationalID map[string]*models.Application

	codeLookups     []string
	nationalLookups []string
}

func (m *mockStore) GetByReferenceCode(ctx context.Context, code string) (*models.Application, error) {
	m.codeLookups = append(m.codeLookups, code)
	if app, ok := m.byCode[code]; ok {
		return app, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) GetByNationalID(ctx context.Context, nationalID string) (*models.Application, error) {
	m.nationalLookups = append(m.nationalLookups, nationalID)
	if app, ok := m.byNationalID[nationalID]; ok {
		return app, nil
	}
	return nil, store.ErrNotFound
}

func newTestHandler(t *testing.T, st *mockStore) *Handler {
	return NewHandler(LoadConfig(), st, logger.NewTestLogger(t))
}

func TestExecute_ResolvesExactCode(t *testing.T) {
	app := &models.Application{
		SessionID:     "session-abc",
		ReferenceCode: "AB12CD",
		CurrentStep:   models.StepCompleted,
		Channel:       models.ChannelWeb,
	}
	st := &mockStore{byCode: map[string]*models.Application{"AB12CD": app}}
	h := newTestHandler(t, st)

	tests := []struct {
		name string
		code string
	}{
		{"exact", "AB12CD"},
		{"lowercase", "ab12cd"},
		{"spaced", " ab 12 cd "},
		{"dashed", "AB-12-CD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := h.Execute(context.Background(), &Input{Code: tt.code})
			require.NoError(t, err)
			assert.True(t, output.Found)
			assert.Equal(t, "session-abc", output.SessionID)
			assert.Equal(t, "reference_code", output.MatchedBy)
		})
	}
}

func TestExecute_FallsBackToNationalID(t *testing.T) {
	app := &models.Application{
		SessionID:     "session-xyz",
		ReferenceCode: "ZZ99XX",
		CurrentStep:   models.StepInReview,
		Channel:       models.ChannelUSSD,
	}
	st := &mockStore{byNationalID: map[string]*models.Application{"631234567A53": app}}
	h := newTestHandler(t, st)

	output, err := h.Execute(context.Background(), &Input{Code: "63-123456 7 A 53"})

	require.NoError(t, err)
	assert.True(t, output.Found)
	assert.Equal(t, "session-xyz", output.SessionID)
	assert.Equal(t, "national_id", output.MatchedBy)
	// A twelve-character key never hits the reference-code path.
	assert.Empty(t, st.codeLookups)
}

func TestExecute_NoMatch(t *testing.T) {
	st := &mockStore{}
	h := newTestHandler(t, st)

	output, err := h.Execute(context.Background(), &Input{Code: "AB12CD"})

	require.NoError(t, err)
	assert.False(t, output.Found)
	assert.Empty(t, output.SessionID)
}

func TestExecute_EmptyCode(t *testing.T) {
	h := newTestHandler(t, &mockStore{})

	_, err := h.Execute(context.Background(), &Input{Code: "   "})

	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeValidationFailed))
}

func TestExecute_MalformedCodeNeverReachesTheStore(t *testing.T) {
	st := &mockStore{}
	h := newTestHandler(t, st)

	for _, code := range []string{"AB1", "AB!2CD"} {
		_, err := h.Execute(context.Background(), &Input{Code: code})
		require.Error(t, err, code)
		assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeReferenceCodeInvalid))
	}
	assert.Empty(t, st.codeLookups)
	assert.Empty(t, st.nationalLookups)
}

func TestExecute_SixCharCodeMissesThenSkipsBadNationalID(t *testing.T) {
	// Six characters that match no code and do not form a national id.
	st := &mockStore{}
	h := newTestHandler(t, st)

	output, err := h.Execute(context.Background(), &Input{Code: "QQQQQQ"})

	require.NoError(t, err)
	assert.False(t, output.Found)
	assert.Len(t, st.codeLookups, 1)
	assert.Empty(t, st.nationalLookups)
}
