package enums

import "fmt"

// FundingRequestStatus maps to the funding_request_status enum in Postgres.
type FundingRequestStatus string

const (
	FundingRequestStatusReview    FundingRequestStatus = "review"
	FundingRequestStatusOffered   FundingRequestStatus = "offered"
	FundingRequestStatusAccepted  FundingRequestStatus = "accepted"
	FundingRequestStatusSigned    FundingRequestStatus = "signed"
	FundingRequestStatusFunded    FundingRequestStatus = "funded"
	FundingRequestStatusCancelled FundingRequestStatus = "cancelled"
)

var validFundingRequestStatuses = []FundingRequestStatus{
	FundingRequestStatusReview,
	FundingRequestStatusOffered,
	FundingRequestStatusAccepted,
	FundingRequestStatusSigned,
	FundingRequestStatusFunded,
	FundingRequestStatusCancelled,
}

// FundingRequestStatuses returns every status in lifecycle order.
func FundingRequestStatuses() []FundingRequestStatus {
	out := make([]FundingRequestStatus, len(validFundingRequestStatuses))
	copy(out, validFundingRequestStatuses)
	return out
}

func (s FundingRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known FundingRequestStatus.
func (s FundingRequestStatus) IsValid() bool {
	for _, candidate := range validFundingRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further lifecycle transition leaves this status.
func (s FundingRequestStatus) IsTerminal() bool {
	return s == FundingRequestStatusFunded || s == FundingRequestStatusCancelled
}

// ParseFundingRequestStatus converts raw input into a FundingRequestStatus.
func ParseFundingRequestStatus(value string) (FundingRequestStatus, error) {
	for _, candidate := range validFundingRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid funding request status %q", value)
}
