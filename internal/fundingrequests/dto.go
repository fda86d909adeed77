package fundingrequests

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/enums"
)

// PatchRequest is the closed set of client-editable fields. Unknown keys are
// rejected at decode time; an empty invoice_id clears it.
type PatchRequest struct {
	RequestedAmount *decimal.Decimal `json:"requested_amount"`
	InvoiceID       *string          `json:"invoice_id" validate:"omitempty,max=64"`
	Status          *string          `json:"status" validate:"omitempty,oneof=offered accepted"`
	Version         *int             `json:"version" validate:"omitempty,min=1"`
}

func (p PatchRequest) empty() bool {
	return p.RequestedAmount == nil && p.InvoiceID == nil && p.Status == nil
}

// ListParams filters the company's requests.
type ListParams struct {
	Status          string
	IncludeArchived bool
	Limit           int
	Cursor          string
}

// ListResult is one page of requests.
type ListResult struct {
	Items  []FundingRequestDTO `json:"items"`
	Cursor string              `json:"cursor"`
}

// Upload is one support file attached to a request.
type Upload struct {
	FileName string
	Content  io.Reader
}

// ContractLink is the URL a caller opens to view or sign the contract.
type ContractLink struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

const (
	LinkKindViewer  = "viewer"
	LinkKindSession = "session"
)

// CompanySummary counts a company's requests by status.
type CompanySummary struct {
	CompanyID uuid.UUID                            `json:"company_id"`
	Counts    map[enums.FundingRequestStatus]int64 `json:"counts"`
	Total     int64                                `json:"total"`
}

// FundingRequestDTO is the transport shape of a funding request.
type FundingRequestDTO struct {
	ID                    uuid.UUID                  `json:"id"`
	CompanyID             uuid.UUID                  `json:"company_id"`
	RequestedAmount       decimal.Decimal            `json:"requested_amount"`
	Currency              string                     `json:"currency"`
	InvoiceID             *string                    `json:"invoice_id"`
	Status                enums.FundingRequestStatus `json:"status"`
	ArchivedAt            *time.Time                 `json:"archived_at"`
	ArchivedBy            *uuid.UUID                 `json:"archived_by"`
	DefaultDiscountRate   *decimal.Decimal           `json:"default_discount_rate,omitempty"`
	DefaultOperationDays  *int                       `json:"default_operation_days,omitempty"`
	DefaultAdvancePct     *decimal.Decimal           `json:"default_advance_pct,omitempty"`
	DefaultSettingsSource *string                    `json:"default_settings_source,omitempty"`
	FilePath              *string                    `json:"file_path,omitempty"`
	Version               int                        `json:"version"`
	CreatedAt             time.Time                  `json:"created_at"`
	UpdatedAt             time.Time                  `json:"updated_at"`
}

// DocumentDTO is the transport shape of a request document.
type DocumentDTO struct {
	ID                 uuid.UUID              `json:"id"`
	RequestID          uuid.UUID              `json:"request_id"`
	Type               enums.DocumentType     `json:"type"`
	Status             enums.DocumentStatus   `json:"status"`
	Provider           enums.DocumentProvider `json:"provider"`
	ProviderEnvelopeID *string                `json:"provider_envelope_id,omitempty"`
	FileName           string                 `json:"file_name"`
	ContentType        string                 `json:"content_type"`
	CreatedAt          time.Time              `json:"created_at"`
}

// ToDTO converts a model to the external DTO.
func ToDTO(m *models.FundingRequest) *FundingRequestDTO {
	if m == nil {
		return nil
	}
	return &FundingRequestDTO{
		ID:                    m.ID,
		CompanyID:             m.CompanyID,
		RequestedAmount:       m.RequestedAmount,
		Currency:              m.Currency,
		InvoiceID:             m.InvoiceID,
		Status:                m.Status,
		ArchivedAt:            m.ArchivedAt,
		ArchivedBy:            m.ArchivedBy,
		DefaultDiscountRate:   m.DefaultDiscountRate,
		DefaultOperationDays:  m.DefaultOperationDays,
		DefaultAdvancePct:     m.DefaultAdvancePct,
		DefaultSettingsSource: m.DefaultSettingsSource,
		FilePath:              m.FilePath,
		Version:               m.Version,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

// DocumentToDTO converts a document model.
func DocumentToDTO(m *models.Document) *DocumentDTO {
	if m == nil {
		return nil
	}
	return &DocumentDTO{
		ID:                 m.ID,
		RequestID:          m.RequestID,
		Type:               m.Type,
		Status:             m.Status,
		Provider:           m.Provider,
		ProviderEnvelopeID: m.ProviderEnvelopeID,
		FileName:           m.FileName,
		ContentType:        m.ContentType,
		CreatedAt:          m.CreatedAt,
	}
}
