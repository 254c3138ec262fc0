package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gigline/internal/domain"
	"gigline/internal/repo"
)

// EnsureUser resolves the acting user for CLI commands, creating the row on
// first use. plan and role only apply on creation, except that an explicit
// plan upgrades an existing user so local testing can move between tiers.
func EnsureUser(ctx context.Context, r repo.Repo, email, name, plan, role string) (domain.User, error) {
	if email == "" {
		return domain.User{}, fmt.Errorf("user email not specified; use --email")
	}
	u, err := r.GetUserByEmail(ctx, email)
	if err == nil {
		if plan != "" && plan != u.Plan {
			if err := r.UpdateUserPlan(ctx, u.ID, plan); err != nil {
				return domain.User{}, fmt.Errorf("update plan: %w", err)
			}
			u.Plan = plan
		}
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}

	if plan == "" {
		plan = "free"
	}
	if role == "" {
		role = "member"
	}
	u = domain.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Role:      role,
		Plan:      plan,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.InsertUser(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}
