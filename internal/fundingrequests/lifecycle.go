package fundingrequests

import (
	"fmt"

	"github.com/angelmondragon/factoring-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
)

// transitions lists every status change the lifecycle permits. Funded and
// cancelled are terminal.
var transitions = map[enums.FundingRequestStatus][]enums.FundingRequestStatus{
	enums.FundingRequestStatusReview:   {enums.FundingRequestStatusOffered, enums.FundingRequestStatusCancelled},
	enums.FundingRequestStatusOffered:  {enums.FundingRequestStatusAccepted, enums.FundingRequestStatusCancelled},
	enums.FundingRequestStatusAccepted: {enums.FundingRequestStatusSigned, enums.FundingRequestStatusCancelled},
	enums.FundingRequestStatusSigned:   {enums.FundingRequestStatusFunded, enums.FundingRequestStatusCancelled},
}

// patchTransitions are the status moves a client patch may request.
var patchTransitions = map[enums.FundingRequestStatus]enums.FundingRequestStatus{
	enums.FundingRequestStatusReview:  enums.FundingRequestStatusOffered,
	enums.FundingRequestStatusOffered: enums.FundingRequestStatusAccepted,
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to enums.FundingRequestStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func canPatchTo(from, to enums.FundingRequestStatus) bool {
	next, ok := patchTransitions[from]
	return ok && next == to
}

// canFund applies the funding precondition. Permissive mode accepts any
// non-terminal status.
func canFund(from enums.FundingRequestStatus, permissive bool) bool {
	if permissive {
		return !from.IsTerminal()
	}
	return CanTransition(from, enums.FundingRequestStatusFunded)
}

// canDeny accepts every status except funded.
func canDeny(from enums.FundingRequestStatus) bool {
	return from != enums.FundingRequestStatusFunded
}

// canForceSign accepts any non-terminal status and signed itself, which is
// answered as a no-op.
func canForceSign(from enums.FundingRequestStatus) bool {
	return !from.IsTerminal()
}

func canArchive(from enums.FundingRequestStatus) bool {
	return !from.IsTerminal()
}

func invalidTransition(from, to enums.FundingRequestStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move request from %s to %s", from, to)).
		WithDetails(map[string]any{"from_status": from, "to_status": to})
}
