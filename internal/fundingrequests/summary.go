package fundingrequests

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/factoring-portal/internal/authz"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
)

const (
	maxSummaryCompanies = 50
	summaryConcurrency  = 8
)

// Summary counts requests per status for each company. Lookups run
// concurrently and the result keeps the input order.
func (s *service) Summary(ctx context.Context, actor authz.Actor, companyIDs []uuid.UUID) ([]CompanySummary, error) {
	if err := actor.Require(authz.LevelStaffOnly); err != nil {
		return nil, err
	}
	if len(companyIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company_ids required")
	}
	if len(companyIDs) > maxSummaryCompanies {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many company ids").
			WithDetails(map[string]any{"max": maxSummaryCompanies})
	}

	out := make([]CompanySummary, len(companyIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, companyID := range companyIDs {
		g.Go(func() error {
			counts, err := s.repo.CountByStatus(gctx, companyID)
			if err != nil {
				return err
			}
			var total int64
			for _, n := range counts {
				total += n
			}
			out[i] = CompanySummary{CompanyID: companyID, Counts: counts, Total: total}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count funding requests")
	}
	return out, nil
}
