package repositories

import (
	"context"
	"fmt"

	"example.com/backstage/services/analytics/internal/models"

	"github.com/pkg/errors"
)

// FinancialRepository provides access to financial events. Every rollup is limited to
// models.CategoryEarnings; spend is the payer-side mirror of earnings.
type FinancialRepository struct {
	store Store
}

// NewFinancialRepository creates a new financial repository
func NewFinancialRepository(store Store) *FinancialRepository {
	return &FinancialRepository{store: store}
}

// Append writes a single financial event
func (r *FinancialRepository) Append(ctx context.Context, event *models.FinancialEvent) error {
	return r.store.Insert(ctx, models.FinancialEventsTable, models.FinancialEventColumns, [][]interface{}{event.Row()})
}

// TotalEarnings sums a user's earnings, 0 when there are none
func (r *FinancialRepository) TotalEarnings(ctx context.Context, userID string) (float64, error) {
	return r.sum(ctx, "user_id", userID)
}

// TotalSpend sums what a payer paid out as earnings to others, 0 when there is nothing
func (r *FinancialRepository) TotalSpend(ctx context.Context, clientID string) (float64, error) {
	return r.sum(ctx, "counterparty_id", clientID)
}

// column is always one of the fixed party columns, never caller input
func (r *FinancialRepository) sum(ctx context.Context, column, id string) (float64, error) {
	var total float64
	query := fmt.Sprintf(
		"SELECT COALESCE(SUM(amount), 0) FROM financial_events WHERE %s = ? AND category = ?", column)
	if err := r.store.Query(ctx, &total, query, id, models.CategoryEarnings); err != nil {
		return 0, errors.Wrapf(err, "failed to sum earnings by %s", column)
	}
	return total, nil
}

// MonthlyEarnings sums a user's earnings per calendar month, newest month first
func (r *FinancialRepository) MonthlyEarnings(ctx context.Context, userID string, limit int) ([]models.MonthlyAmount, error) {
	query := fmt.Sprintf(
		"SELECT %s AS bucket_month, SUM(amount) AS total_amount FROM financial_events "+
			"WHERE user_id = ? AND category = ? "+
			"GROUP BY bucket_month ORDER BY bucket_month DESC LIMIT ?",
		r.store.Dialect().MonthBucket("timestamp"),
	)

	var months []models.MonthlyAmount
	if err := r.store.Query(ctx, &months, query, userID, models.CategoryEarnings, limit); err != nil {
		return nil, errors.Wrap(err, "failed to sum monthly earnings")
	}
	return months, nil
}

// CompletedJobs counts the distinct jobs a user has been paid for
func (r *FinancialRepository) CompletedJobs(ctx context.Context, userID string) (int64, error) {
	return r.distinctJobs(ctx, "user_id", userID)
}

// FundedJobs counts the distinct jobs a payer has paid for
func (r *FinancialRepository) FundedJobs(ctx context.Context, clientID string) (int64, error) {
	return r.distinctJobs(ctx, "counterparty_id", clientID)
}

func (r *FinancialRepository) distinctJobs(ctx context.Context, column, id string) (int64, error) {
	var count int64
	query := fmt.Sprintf(
		"SELECT COUNT(DISTINCT job_id) FROM financial_events WHERE %s = ? AND category = ? AND job_id <> ''", column)
	if err := r.store.Query(ctx, &count, query, id, models.CategoryEarnings); err != nil {
		return 0, errors.Wrapf(err, "failed to count distinct jobs by %s", column)
	}
	return count, nil
}

// SpendByJob sums a payer's spend per job, largest first. Rows without a job are left out.
func (r *FinancialRepository) SpendByJob(ctx context.Context, clientID string, limit int) ([]models.JobAmount, error) {
	var jobs []models.JobAmount
	err := r.store.Query(ctx, &jobs,
		"SELECT job_id, SUM(amount) AS total_amount FROM financial_events "+
			"WHERE counterparty_id = ? AND category = ? AND job_id <> '' "+
			"GROUP BY job_id ORDER BY total_amount DESC, job_id ASC LIMIT ?",
		clientID, models.CategoryEarnings, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sum spend by job")
	}
	return jobs, nil
}

// SpendByCostCenter sums a payer's spend per cost center, largest first
func (r *FinancialRepository) SpendByCostCenter(ctx context.Context, clientID string) ([]models.CostCenterAmount, error) {
	var centers []models.CostCenterAmount
	err := r.store.Query(ctx, &centers,
		"SELECT cost_center, SUM(amount) AS total_amount FROM financial_events "+
			"WHERE counterparty_id = ? AND category = ? "+
			"GROUP BY cost_center ORDER BY total_amount DESC, cost_center ASC",
		clientID, models.CategoryEarnings)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sum spend by cost center")
	}
	return centers, nil
}
