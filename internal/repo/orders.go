package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gigline/internal/domain"
)

const orderColumns = `id,owner_id,client_id,title,amount,currency,status,created_at,updated_at`

func scanOrder(scan func(dest ...any) error) (domain.Order, error) {
	var o domain.Order
	var clientID sql.NullString
	err := scan(&o.ID, &o.OwnerID, &clientID, &o.Title, &o.Amount, &o.Currency, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	o.ClientID = stringPtr(clientID)
	return o, err
}

func (r Repo) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO orders(id,owner_id,client_id,title,amount,currency,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		o.ID, o.OwnerID, nullableStringPtr(o.ClientID), o.Title, o.Amount, o.Currency, o.Status, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r Repo) GetOrder(ctx context.Context, ownerID, id string) (domain.Order, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=? AND owner_id=?`, id, ownerID)
	return scanOrder(row.Scan)
}

func (r Repo) ListOrders(ctx context.Context, ownerID string, f ListFilter) ([]domain.Order, error) {
	clauses := []string{"owner_id=?"}
	args := []any{ownerID}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Search != "" {
		clauses = append(clauses, "title LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}
	if f.From != "" {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "created_at < ?")
		args = append(args, f.To)
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) ListOrderIDs(ctx context.Context, ownerID string, f ListFilter) ([]string, error) {
	clauses := []string{"owner_id=?"}
	args := []any{ownerID}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Search != "" {
		clauses = append(clauses, "title LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}
	if f.From != "" {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "created_at < ?")
		args = append(args, f.To)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM orders WHERE `+strings.Join(clauses, " AND "), args...)
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

func (r Repo) UpdateOrder(ctx context.Context, o domain.Order) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE orders SET client_id=?,title=?,amount=?,currency=?,status=?,updated_at=? WHERE id=? AND owner_id=?`,
		nullableStringPtr(o.ClientID), o.Title, o.Amount, o.Currency, o.Status, o.UpdatedAt, o.ID, o.OwnerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteOrders(ctx context.Context, ownerID string, ids []string) (int64, error) {
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
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM orders WHERE id IN (%s) AND owner_id=?`, placeholders), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
