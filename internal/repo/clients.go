package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gigline/internal/domain"
)

const clientColumns = `id,owner_id,name,COALESCE(email,''),COALESCE(phone,''),COALESCE(company,''),COALESCE(notes,''),created_at,updated_at`

func scanClient(scan func(dest ...any) error) (domain.Client, error) {
	var c domain.Client
	err := scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) InsertClient(ctx context.Context, c domain.Client) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO clients(id,owner_id,name,email,phone,company,notes,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.OwnerID, c.Name, nullable(c.Email), nullable(c.Phone), nullable(c.Company), nullable(c.Notes), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetClient(ctx context.Context, ownerID, id string) (domain.Client, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=? AND owner_id=?`, id, ownerID)
	return scanClient(row.Scan)
}

func (r Repo) ListClients(ctx context.Context, ownerID string, f ListFilter) ([]domain.Client, error) {
	clauses := []string{"owner_id=?"}
	args := []any{ownerID}
	if f.Search != "" {
		clauses = append(clauses, "(name LIKE ? OR company LIKE ? OR email LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like, like)
	}
	query := `SELECT ` + clientColumns + ` FROM clients WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Client
	for rows.Next() {
		c, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) ListClientIDs(ctx context.Context, ownerID string, f ListFilter) ([]string, error) {
	clauses := []string{"owner_id=?"}
	args := []any{ownerID}
	if f.Search != "" {
		clauses = append(clauses, "(name LIKE ? OR company LIKE ? OR email LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like, like)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM clients WHERE `+strings.Join(clauses, " AND "), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r Repo) UpdateClient(ctx context.Context, c domain.Client) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE clients SET name=?,email=?,phone=?,company=?,notes=?,updated_at=? WHERE id=? AND owner_id=?`,
		c.Name, nullable(c.Email), nullable(c.Phone), nullable(c.Company), nullable(c.Notes), c.UpdatedAt, c.ID, c.OwnerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteClients(ctx context.Context, ownerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, ownerID)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM clients WHERE id IN (%s) AND owner_id=?`, placeholders), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
