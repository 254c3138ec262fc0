package repo

import (
	"context"
	"time"

	"gigline/internal/domain"
)

func (r Repo) InsertUsage(ctx context.Context, u domain.UsageRecord) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO usage_records(user_id,action_type,resource,count,created_at) VALUES (?,?,?,?,?)`,
		u.UserID, u.ActionType, u.Resource, u.Count, u.CreatedAt)
	return err
}

// MonthlyUsage sums ledger counts for the calendar month containing at.
func (r Repo) MonthlyUsage(ctx context.Context, userID string, at time.Time) (int, error) {
	start, end := monthBounds(at)
	var total int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count),0) FROM usage_records WHERE user_id=? AND created_at >= ? AND created_at < ?`,
		userID, start, end).Scan(&total)
	return total, err
}

// MonthlyUsageByResource breaks the current month's usage down per resource.
func (r Repo) MonthlyUsageByResource(ctx context.Context, userID string, at time.Time) (map[string]int, error) {
	start, end := monthBounds(at)
	rows, err := r.DB.QueryContext(ctx,
		`SELECT resource, COALESCE(SUM(count),0) FROM usage_records WHERE user_id=? AND created_at >= ? AND created_at < ? GROUP BY resource`,
		userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var resource string
		var n int
		if err := rows.Scan(&resource, &n); err != nil {
			return nil, err
		}
		res[resource] = n
	}
	return res, rows.Err()
}

func monthBounds(at time.Time) (string, string) {
	at = at.UTC()
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return start.Format(time.RFC3339), end.Format(time.RFC3339)
}
