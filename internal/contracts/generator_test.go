package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/factoring-portal/pkg/config"
	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/pandadoc"
)

type stubCompanies struct {
	company *models.Company
	err     error
}

func (s stubCompanies) Get(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return s.company, s.err
}

func newProvider(t *testing.T, handler http.HandlerFunc, templateID string) *pandadoc.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return pandadoc.NewClient(config.PandaDocConfig{APIKey: "key", BaseURL: srv.URL, TemplateID: templateID})
}

func testInput(companyID uuid.UUID) Input {
	invoice := "INV-7"
	return Input{
		CompanyID: companyID,
		Request: models.FundingRequest{
			ID:              uuid.New(),
			CompanyID:       companyID,
			RequestedAmount: decimal.RequireFromString("1500"),
			Currency:        "USD",
			InvoiceID:       &invoice,
		},
	}
}

func TestGenerateCreatesEnvelope(t *testing.T) {
	companyID := uuid.New()
	payer := "ap@buyer.test"

	var captured pandadoc.CreateDocumentRequest
	provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"env-1","name":"Factoring agreement","status":"document.uploaded"}`))
	}, "tpl-1")

	gen, err := NewPandaDocGenerator(provider, stubCompanies{company: &models.Company{ID: companyID, Name: "Acme", PayerEmail: &payer}})
	require.NoError(t, err)

	contract, err := gen.Generate(context.Background(), testInput(companyID))
	require.NoError(t, err)
	assert.Equal(t, "env-1", contract.EnvelopeID)

	assert.Equal(t, "tpl-1", captured.TemplateUUID)
	require.Len(t, captured.Recipients, 1)
	assert.Equal(t, payer, captured.Recipients[0].Email)
	assert.Contains(t, captured.Name, "INV-7")
	assert.Equal(t, companyID.String(), captured.Metadata["company_id"])

	var amount string
	for _, token := range captured.Tokens {
		if token.Name == "Request.Amount" {
			amount = token.Value
		}
	}
	assert.Equal(t, "1500.00", amount)
}

func TestGenerateMissingPayerIsDomainError(t *testing.T) {
	provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider must not be called")
	}, "tpl-1")
	companyID := uuid.New()
	gen, err := NewPandaDocGenerator(provider, stubCompanies{company: &models.Company{ID: companyID, Name: "Acme"}})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), testInput(companyID))
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeMissingPayer, genErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, genErr.Status)
}

func TestGenerateProviderRejection(t *testing.T) {
	payer := "ap@buyer.test"
	provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"request_error","detail":"template has no Payer role"}`))
	}, "tpl-1")
	companyID := uuid.New()
	gen, err := NewPandaDocGenerator(provider, stubCompanies{company: &models.Company{ID: companyID, Name: "Acme", PayerEmail: &payer}})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), testInput(companyID))
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeProviderRejected, genErr.Code)
	assert.Equal(t, http.StatusBadGateway, genErr.Status)
	assert.Contains(t, genErr.Error(), "template has no Payer role")
}

func TestGenerateInfrastructureFailuresStayUntyped(t *testing.T) {
	payer := "ap@buyer.test"
	provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, "tpl-1")
	companyID := uuid.New()

	gen, err := NewPandaDocGenerator(provider, stubCompanies{company: &models.Company{ID: companyID, Name: "Acme", PayerEmail: &payer}})
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), testInput(companyID))
	require.Error(t, err)
	var genErr *GenerationError
	assert.False(t, errors.As(err, &genErr))

	gen, err = NewPandaDocGenerator(provider, stubCompanies{err: errors.New("db down")})
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), testInput(companyID))
	require.Error(t, err)
	assert.False(t, errors.As(err, &genErr))
}

func TestGenerateWithoutTemplateOrKey(t *testing.T) {
	payer := "ap@buyer.test"
	companyID := uuid.New()
	lookup := stubCompanies{company: &models.Company{ID: companyID, Name: "Acme", PayerEmail: &payer}}

	gen, err := NewPandaDocGenerator(pandadoc.NewClient(config.PandaDocConfig{APIKey: "key"}), lookup)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), testInput(companyID))
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeTemplateNotConfigured, genErr.Code)

	gen, err = NewPandaDocGenerator(pandadoc.NewClient(config.PandaDocConfig{TemplateID: "tpl"}), lookup)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), testInput(companyID))
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeProviderNotConfigured, genErr.Code)
	assert.Equal(t, http.StatusServiceUnavailable, genErr.Status)
}
