package enums

import "fmt"

// DocumentType maps to the document_type enum in Postgres.
type DocumentType string

const (
	DocumentTypeRequestSupport DocumentType = "request_support"
	DocumentTypeContract       DocumentType = "contract"
)

var validDocumentTypes = []DocumentType{
	DocumentTypeRequestSupport,
	DocumentTypeContract,
}

// IsValid reports whether the value is a known DocumentType.
func (d DocumentType) IsValid() bool {
	for _, candidate := range validDocumentTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDocumentType converts raw input into a DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	for _, candidate := range validDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}

// DocumentStatus maps to the document_status enum in Postgres.
type DocumentStatus string

const (
	DocumentStatusUploaded DocumentStatus = "uploaded"
	DocumentStatusDraft    DocumentStatus = "draft"
	DocumentStatusSent     DocumentStatus = "sent"
	DocumentStatusSigned   DocumentStatus = "signed"
	DocumentStatusExpired  DocumentStatus = "expired"
)

var validDocumentStatuses = []DocumentStatus{
	DocumentStatusUploaded,
	DocumentStatusDraft,
	DocumentStatusSent,
	DocumentStatusSigned,
	DocumentStatusExpired,
}

// IsValid reports whether the value is a known DocumentStatus.
func (d DocumentStatus) IsValid() bool {
	for _, candidate := range validDocumentStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDocumentStatus converts raw input into a DocumentStatus.
func ParseDocumentStatus(value string) (DocumentStatus, error) {
	for _, candidate := range validDocumentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document status %q", value)
}

// DocumentProvider names the system holding the document bytes.
type DocumentProvider string

const (
	DocumentProviderStorage  DocumentProvider = "storage"
	DocumentProviderPandaDoc DocumentProvider = "pandadoc"
)

// IsValid reports whether the value is a known DocumentProvider.
func (d DocumentProvider) IsValid() bool {
	return d == DocumentProviderStorage || d == DocumentProviderPandaDoc
}
