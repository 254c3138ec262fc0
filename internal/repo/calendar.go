package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gigline/internal/domain"
)

const eventColumns = `id,owner_id,client_id,title,COALESCE(location,''),start_at,end_at,created_at,updated_at`

func scanEvent(scan func(dest ...any) error) (domain.CalendarEvent, error) {
	var e domain.CalendarEvent
	var clientID, endAt sql.NullString
	err := scan(&e.ID, &e.OwnerID, &clientID, &e.Title, &e.Location, &e.StartAt, &endAt, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	e.ClientID = stringPtr(clientID)
	e.EndAt = stringPtr(endAt)
	return e, err
}

func (r Repo) InsertEvent(ctx context.Context, e domain.CalendarEvent) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO calendar_events(id,owner_id,client_id,title,location,start_at,end_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, e.OwnerID, nullableStringPtr(e.ClientID), e.Title, nullable(e.Location), e.StartAt, nullableStringPtr(e.EndAt), e.CreatedAt, e.UpdatedAt)
	return err
}

func (r Repo) GetEvent(ctx context.Context, ownerID, id string) (domain.CalendarEvent, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id=? AND owner_id=?`, id, ownerID)
	return scanEvent(row.Scan)
}

func (r Repo) ListEvents(ctx context.Context, ownerID string, f ListFilter) ([]domain.CalendarEvent, error) {
	clauses := []string{"owner_id=?"}
	args := []any{ownerID}
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR location LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if f.From != "" {
		clauses = append(clauses, "start_at >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "start_at < ?")
		args = append(args, f.To)
	}
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY start_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) ListEventIDs(ctx context.Context, ownerID string, f ListFilter) ([]string, error) {
	clauses := []string{"owner_id=?"}
	args := []any{ownerID}
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR location LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if f.From != "" {
		clauses = append(clauses, "start_at >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "start_at < ?")
		args = append(args, f.To)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM calendar_events WHERE `+strings.Join(clauses, " AND "), args...)
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

func (r Repo) UpdateEvent(ctx context.Context, e domain.CalendarEvent) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE calendar_events SET client_id=?,title=?,location=?,start_at=?,end_at=?,updated_at=? WHERE id=? AND owner_id=?`,
		nullableStringPtr(e.ClientID), e.Title, nullable(e.Location), e.StartAt, nullableStringPtr(e.EndAt), e.UpdatedAt, e.ID, e.OwnerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteEvents(ctx context.Context, ownerID string, ids []string) (int64, error) {
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
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM calendar_events WHERE id IN (%s) AND owner_id=?`, placeholders), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
