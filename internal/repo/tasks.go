package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gigline/internal/domain"
)

const taskColumns = `id,owner_id,client_id,title,COALESCE(description,''),status,priority,due_date,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var clientID, dueDate sql.NullString
	err := scan(&t.ID, &t.OwnerID, &clientID, &t.Title, &t.Description, &t.Status, &t.Priority, &dueDate, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	t.ClientID = stringPtr(clientID)
	t.DueDate = stringPtr(dueDate)
	return t, err
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(id,owner_id,client_id,title,description,status,priority,due_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.OwnerID, nullableStringPtr(t.ClientID), t.Title, nullable(t.Description), t.Status, t.Priority,
		nullableStringPtr(t.DueDate), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, ownerID, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND owner_id=?`, id, ownerID)
	return scanTask(row.Scan)
}

func (r Repo) ListTasks(ctx context.Context, ownerID string, f ListFilter) ([]domain.Task, error) {
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
		clauses = append(clauses, "(title LIKE ? OR description LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if f.From != "" {
		clauses = append(clauses, "due_date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "due_date < ?")
		args = append(args, f.To)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListTaskIDs resolves the ids a filtered delete would touch, so the
// confirmation turn can stage an exact target set.
func (r Repo) ListTaskIDs(ctx context.Context, ownerID string, f ListFilter) ([]string, error) {
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
		clauses = append(clauses, "(title LIKE ? OR description LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if f.From != "" {
		clauses = append(clauses, "due_date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "due_date < ?")
		args = append(args, f.To)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM tasks WHERE `+strings.Join(clauses, " AND "), args...)
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

func (r Repo) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET client_id=?,title=?,description=?,status=?,priority=?,due_date=?,updated_at=? WHERE id=? AND owner_id=?`,
		nullableStringPtr(t.ClientID), t.Title, nullable(t.Description), t.Status, t.Priority,
		nullableStringPtr(t.DueDate), t.UpdatedAt, t.ID, t.OwnerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTasks(ctx context.Context, ownerID string, ids []string) (int64, error) {
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
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM tasks WHERE id IN (%s) AND owner_id=?`, placeholders), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
