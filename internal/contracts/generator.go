package contracts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/pandadoc"
)

const (
	payerRole  = "Payer"
	metaSource = "factoring-portal"
)

// Provider is the e-signature API used to create, send and open envelopes.
type Provider interface {
	TemplateID() string
	CreateDocument(ctx context.Context, req pandadoc.CreateDocumentRequest) (*pandadoc.Document, error)
	SendDocument(ctx context.Context, documentID, subject, message string) error
	CreateSessionLink(ctx context.Context, documentID, email string) (string, error)
}

type companyLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

// Input is what a contract is generated from.
type Input struct {
	CompanyID uuid.UUID
	Request   models.FundingRequest
}

// Contract is the created provider envelope.
type Contract struct {
	EnvelopeID string
	Name       string
	Status     string
}

// Generator creates a contract envelope for a funding request.
type Generator interface {
	Generate(ctx context.Context, in Input) (*Contract, error)
}

// PandaDocGenerator fills the configured template with company and request data.
type PandaDocGenerator struct {
	provider  Provider
	companies companyLookup
}

// NewPandaDocGenerator wires the generator.
func NewPandaDocGenerator(provider Provider, companies companyLookup) (*PandaDocGenerator, error) {
	if provider == nil {
		return nil, fmt.Errorf("contract provider required")
	}
	if companies == nil {
		return nil, fmt.Errorf("company lookup required")
	}
	return &PandaDocGenerator{provider: provider, companies: companies}, nil
}

// Generate returns a *GenerationError for data or provider rejections and a
// plain error for infrastructure failures.
func (g *PandaDocGenerator) Generate(ctx context.Context, in Input) (*Contract, error) {
	company, err := g.companies.Get(ctx, in.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return nil, newGenerationError(CodeCompanyNotFound, http.StatusNotFound, nil)
	}
	if company.PayerEmail == nil || strings.TrimSpace(*company.PayerEmail) == "" {
		return nil, newGenerationError(CodeMissingPayer, http.StatusUnprocessableEntity,
			fmt.Errorf("company %s has no payer email", company.ID))
	}
	if g.provider.TemplateID() == "" {
		return nil, newGenerationError(CodeTemplateNotConfigured, http.StatusUnprocessableEntity, nil)
	}

	doc, err := g.provider.CreateDocument(ctx, pandadoc.CreateDocumentRequest{
		Name:         contractName(company, in.Request),
		TemplateUUID: g.provider.TemplateID(),
		Recipients: []pandadoc.Recipient{{
			Email: strings.TrimSpace(*company.PayerEmail),
			Role:  payerRole,
		}},
		Tokens: contractTokens(company, in.Request),
		Metadata: map[string]string{
			"source":     metaSource,
			"company_id": company.ID.String(),
			"request_id": in.Request.ID.String(),
		},
	})
	if err != nil {
		return nil, classifyProviderError(err)
	}
	return &Contract{EnvelopeID: doc.ID, Name: doc.Name, Status: doc.Status}, nil
}

func classifyProviderError(err error) error {
	if errors.Is(err, pandadoc.ErrNotConfigured) {
		return newGenerationError(CodeProviderNotConfigured, http.StatusServiceUnavailable, err)
	}
	var apiErr *pandadoc.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return newGenerationError(CodeProviderRejected, http.StatusBadGateway, err)
	}
	return err
}

func contractName(company *models.Company, req models.FundingRequest) string {
	name := fmt.Sprintf("Factoring agreement - %s", company.Name)
	if req.InvoiceID != nil && *req.InvoiceID != "" {
		name += " - invoice " + *req.InvoiceID
	}
	return name
}

func contractTokens(company *models.Company, req models.FundingRequest) []pandadoc.Token {
	tokens := []pandadoc.Token{
		{Name: "Client.Company", Value: company.Name},
		{Name: "Request.Amount", Value: req.RequestedAmount.StringFixed(2)},
		{Name: "Request.Currency", Value: req.Currency},
	}
	if company.TaxID != nil {
		tokens = append(tokens, pandadoc.Token{Name: "Client.TaxID", Value: *company.TaxID})
	}
	if req.InvoiceID != nil {
		tokens = append(tokens, pandadoc.Token{Name: "Request.Invoice", Value: *req.InvoiceID})
	}
	if req.DefaultDiscountRate != nil {
		tokens = append(tokens, pandadoc.Token{Name: "Terms.DiscountRate", Value: req.DefaultDiscountRate.String()})
	}
	if req.DefaultAdvancePct != nil {
		tokens = append(tokens, pandadoc.Token{Name: "Terms.AdvancePct", Value: req.DefaultAdvancePct.String()})
	}
	if req.DefaultOperationDays != nil {
		tokens = append(tokens, pandadoc.Token{Name: "Terms.OperationDays", Value: strconv.Itoa(*req.DefaultOperationDays)})
	}
	return tokens
}
