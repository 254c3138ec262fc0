package repo

import (
	"context"
	"database/sql"
	"errors"

	"gigline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ListFilter narrows list queries. All fields are optional; zero values
// mean "no constraint". Bounds apply to the resource's natural date column
// (due_date for tasks, start_at for calendar events, created_at otherwise).
type ListFilter struct {
	Status   string
	ClientID string
	Search   string
	From     string
	To       string
	Limit    int
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,email,COALESCE(name,''),role,plan,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Email, &name, &u.Role, &u.Plan, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if name.Valid {
		u.Name = name.String
	}
	return u, err
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,email,COALESCE(name,''),role,plan,created_at FROM users WHERE email=?`, email).
		Scan(&u.ID, &u.Email, &name, &u.Role, &u.Plan, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if name.Valid {
		u.Name = name.String
	}
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,email,name,role,plan,created_at) VALUES (?,?,?,?,?,?)`,
		u.ID, u.Email, nullable(u.Name), u.Role, u.Plan, u.CreatedAt)
	return err
}

func (r Repo) UpdateUserPlan(ctx context.Context, id, plan string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET plan=? WHERE id=?`, plan, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	s := ns.String
	return &s
}
