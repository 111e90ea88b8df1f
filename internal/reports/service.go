package reports

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultTopProducts = 10

// RepositoryPort abstracts the report queries for the service.
type RepositoryPort interface {
	SalesTotals(ctx context.Context, from, to time.Time, locationID string) (SalesSummary, error)
	TopProducts(ctx context.Context, from, to time.Time, locationID string, limit int) ([]ProductSales, error)
	BatchYields(ctx context.Context, from, to time.Time) ([]BatchYield, error)
	Valuation(ctx context.Context, locationID string) ([]ValuationRow, error)
	ExpiringLots(ctx context.Context, withinDays int) ([]ExpiringLot, error)
}

// Service coordinates report queries with the cache layer.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService wires a RepositoryPort with a Cache helper.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// SalesSummary aggregates register activity between from and to. A zero
// to defaults to now; a zero from defaults to the start of to's month.
func (s *Service) SalesSummary(ctx context.Context, from, to time.Time, locationID string) (SalesSummary, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, to.Location())
	}
	if !from.Before(to) {
		return SalesSummary{}, fmt.Errorf("reports: from %s is not before to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	var summary SalesSummary
	parts := []string{"sales", from.Format("20060102"), to.Format("20060102"), locationID}
	err := s.cache.FetchJSON(ctx, parts, &summary, func(ctx context.Context) (any, error) {
		var out SalesSummary
		var top []ProductSales
		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			var err error
			out, err = s.repo.SalesTotals(groupCtx, from, to, locationID)
			return err
		})
		group.Go(func() error {
			var err error
			top, err = s.repo.TopProducts(groupCtx, from, to, locationID, defaultTopProducts)
			return err
		})
		if err := group.Wait(); err != nil {
			return nil, err
		}
		out.TopProducts = top
		return out, nil
	})
	return summary, err
}

// BatchYields reports roast mass balances for batches in the period.
func (s *Service) BatchYields(ctx context.Context, from, to time.Time) ([]BatchYield, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}

	var yields []BatchYield
	parts := []string{"yields", from.Format("20060102"), to.Format("20060102")}
	err := s.cache.FetchJSON(ctx, parts, &yields, func(ctx context.Context) (any, error) {
		return s.repo.BatchYields(ctx, from, to)
	})
	return yields, err
}

// InventoryValuation prices every lot on hand at its unit cost.
func (s *Service) InventoryValuation(ctx context.Context, locationID string) (ValuationSummary, error) {
	var summary ValuationSummary
	err := s.cache.FetchJSON(ctx, []string{"valuation", locationID}, &summary, func(ctx context.Context) (any, error) {
		rows, err := s.repo.Valuation(ctx, locationID)
		if err != nil {
			return nil, err
		}
		out := ValuationSummary{Rows: rows}
		for i := range out.Rows {
			out.Rows[i].TotalValue = roundMoney(float64(out.Rows[i].Quantity) * out.Rows[i].UnitCost)
			out.TotalValue += out.Rows[i].TotalValue
		}
		out.TotalValue = roundMoney(out.TotalValue)
		return out, nil
	})
	return summary, err
}

// ExpiringLots lists packaged stock expiring within the given days.
func (s *Service) ExpiringLots(ctx context.Context, withinDays int) ([]ExpiringLot, error) {
	if withinDays <= 0 {
		withinDays = 30
	}

	var lots []ExpiringLot
	parts := []string{"expiring", strconv.Itoa(withinDays)}
	err := s.cache.FetchJSON(ctx, parts, &lots, func(ctx context.Context) (any, error) {
		out, err := s.repo.ExpiringLots(ctx, withinDays)
		if err != nil {
			return nil, err
		}
		now := s.now()
		for i := range out {
			out[i].DaysLeft = int(math.Ceil(out[i].ExpiryDate.Sub(now).Hours() / 24))
			if out[i].DaysLeft < 0 {
				out[i].DaysLeft = 0
			}
		}
		return out, nil
	})
	return lots, err
}

// Invalidate expires all cached reports after a write elsewhere.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func roundMoney(value float64) float64 {
	return math.Round(value*100) / 100
}
