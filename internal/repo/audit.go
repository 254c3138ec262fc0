package repo

import (
	"context"

	"gigline/internal/domain"
)

func (r Repo) InsertAudit(ctx context.Context, a domain.AuditEntry) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO audit_entries(user_id,summary,resource,payload_json,result_json,created_at) VALUES (?,?,?,?,?,?)`,
		a.UserID, a.Summary, a.Resource, a.PayloadJSON, a.ResultJSON, a.CreatedAt)
	return err
}

// ListAudit returns the most recent entries for a user, newest first.
func (r Repo) ListAudit(ctx context.Context, userID string, limit int) ([]domain.AuditEntry, error) {
	query := `SELECT id,user_id,summary,resource,payload_json,result_json,created_at FROM audit_entries WHERE user_id=? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditEntry
	for rows.Next() {
		var a domain.AuditEntry
		if err := rows.Scan(&a.ID, &a.UserID, &a.Summary, &a.Resource, &a.PayloadJSON, &a.ResultJSON, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
