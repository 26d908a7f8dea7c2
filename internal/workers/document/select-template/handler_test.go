// internal/workers/document/select-template/handler_test.go
package selecttemplate

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
	app *models.Application
}

func (m *mockStore) GetBySession(ctx context.Context, sessionID string) (*models.Application, error) {
	if m.app == nil {
		return nil, store.ErrNotFound
	}
	return m.app, nil
}

type mockRegistry struct {
	known map[string]bool
}

func (m *mockRegistry) Has(templateID string) bool {
	return m.known[templateID]
}

func TestDetermineTemplate(t *testing.T) {
	tests := []struct {
		name       string
		employer   string
		hasAccount bool
		want       string
		wantRule   string
	}{
		{"ssb employer", "goz-ssb", false, TemplateSSBLoan, "ssb-employer"},
		{"government employer", "government", false, TemplateSSBLoan, "ssb-employer"},
		{"ssb short form", "ssb", false, TemplateSSBLoan, "ssb-employer"},
		{"ssb wins over account", "ssb", true, TemplateSSBLoan, "ssb-employer"},
		{"ssb case insensitive", "  GOZ-SSB ", false, TemplateSSBLoan, "ssb-employer"},
		{"entrepreneur", "entrepreneur", false, TemplateSMEAccountOpening, "entrepreneur"},
		{"self-employed", "self-employed", false, TemplateSMEAccountOpening, "entrepreneur"},
		{"sme", "sme", false, TemplateSMEAccountOpening, "entrepreneur"},
		{"entrepreneur wins over account", "sme", true, TemplateSMEAccountOpening, "entrepreneur"},
		{"account holder", "acme-corp", true, TemplateAccountHolderLoan, "account-holder"},
		{"default", "acme-corp", false, TemplateNewAccountOpening, "default"},
		{"empty employer no account", "", false, TemplateNewAccountOpening, "default"},
		{"empty employer with account", "", true, TemplateAccountHolderLoan, "account-holder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := DetermineTemplate(tt.employer, tt.hasAccount)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRule, rule)
		})
	}
}

func TestExecute_ReadsProfileFromStoredApplication(t *testing.T) {
	st := &mockStore{app: &models.Application{
		SessionID: "session-abc",
		FormData: map[string]interface{}{
			"formResponses": map[string]interface{}{
				"employer":   "government",
				"hasAccount": true,
			},
		},
	}}
	h := NewHandler(LoadConfig(), st, nil, logger.NewTestLogger(t))

	output, err := h.Execute(context.Background(), &Input{SessionID: "session-abc"})

	require.NoError(t, err)
	assert.Equal(t, TemplateSSBLoan, output.TemplateID)
}

func TestExecute_ExplicitVariablesWinOverStoredData(t *testing.T) {
	st := &mockStore{app: &models.Application{
		SessionID: "session-abc",
		FormData: map[string]interface{}{
			"formResponses": map[string]interface{}{"employer": "government"},
		},
	}}
	h := NewHandler(LoadConfig(), st, nil, logger.NewTestLogger(t))

	hasAccount := true
	output, err := h.Execute(context.Background(), &Input{
		SessionID:  "session-abc",
		Employer:   "acme-corp",
		HasAccount: &hasAccount,
	})

	require.NoError(t, err)
	assert.Equal(t, TemplateAccountHolderLoan, output.TemplateID)
}

func TestExecute_UnknownSession(t *testing.T) {
	h := NewHandler(LoadConfig(), &mockStore{}, nil, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{SessionID: "missing"})

	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeApplicationNotFound))
}

func TestExecute_RegistryMiss(t *testing.T) {
	st := &mockStore{app: &models.Application{SessionID: "session-abc"}}
	reg := &mockRegistry{known: map[string]bool{}}
	h := NewHandler(LoadConfig(), st, reg, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{SessionID: "session-abc"})

	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeTemplateNotFound))
}
