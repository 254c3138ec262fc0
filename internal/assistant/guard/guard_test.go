package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"gigline/internal/assistant/intent"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/migrate"
	"gigline/internal/repo"
)

func newTestGuard(t *testing.T) (Guard, repo.Repo) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	g := New(r, config.Default())
	g.Now = func() time.Time { return time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC) }
	return g, r
}

func seedUser(t *testing.T, r repo.Repo, plan, role string) domain.User {
	t.Helper()
	u := domain.User{
		ID:        "u-" + plan + "-" + role,
		Email:     plan + "-" + role + "@example.com",
		Role:      role,
		Plan:      plan,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.InsertUser(context.Background(), u); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return u
}

func addUsage(t *testing.T, r repo.Repo, userID string, count int) {
	t.Helper()
	err := r.InsertUsage(context.Background(), domain.UsageRecord{
		UserID:     userID,
		ActionType: "create",
		Resource:   "task",
		Count:      count,
		CreatedAt:  time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("insert usage: %v", err)
	}
}

func listIntent() intent.Intent {
	return intent.Intent{Operation: intent.OpList, Resource: intent.ResTask, Params: map[string]any{}}
}

func TestAuthorizeEntitlement(t *testing.T) {
	g, r := newTestGuard(t)

	for _, plan := range []string{"free", "pro"} {
		u := seedUser(t, r, plan, "member")
		_, err := g.Authorize(context.Background(), u, listIntent(), u.ID)
		var ent EntitlementDeniedError
		if !errors.As(err, &ent) {
			t.Fatalf("plan %s: err = %v, want entitlement denied", plan, err)
		}
		if ent.Required != "studio" {
			t.Fatalf("required = %q, want studio", ent.Required)
		}
	}

	u := seedUser(t, r, "studio", "member")
	if _, err := g.Authorize(context.Background(), u, listIntent(), u.ID); err != nil {
		t.Fatalf("studio plan should be entitled, got %v", err)
	}
}

func TestAuthorizeQuotaBoundary(t *testing.T) {
	g, r := newTestGuard(t)
	limit := config.Default().Plans["studio"].MonthlyActions

	u := seedUser(t, r, "studio", "member")
	addUsage(t, r, u.ID, limit-1)

	d, err := g.Authorize(context.Background(), u, listIntent(), u.ID)
	if err != nil {
		t.Fatalf("limit-1 should pass, got %v", err)
	}
	if d.Remaining != 1 {
		t.Fatalf("remaining = %d, want 1", d.Remaining)
	}

	addUsage(t, r, u.ID, 1)
	_, err = g.Authorize(context.Background(), u, listIntent(), u.ID)
	var quota QuotaExceededError
	if !errors.As(err, &quota) {
		t.Fatalf("at limit: err = %v, want quota exceeded", err)
	}
	if quota.Used != limit || quota.Limit != limit {
		t.Fatalf("quota = %d/%d, want %d/%d", quota.Used, quota.Limit, limit, limit)
	}
	if quota.Remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", quota.Remaining())
	}
}

func TestAuthorizeWarningAtNinetyPercent(t *testing.T) {
	g, r := newTestGuard(t)
	limit := config.Default().Plans["studio"].MonthlyActions

	u := seedUser(t, r, "studio", "member")
	addUsage(t, r, u.ID, limit*9/10-1)
	d, err := g.Authorize(context.Background(), u, listIntent(), u.ID)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Warning != "" {
		t.Fatalf("below 90%% should not warn, got %q", d.Warning)
	}

	addUsage(t, r, u.ID, 1)
	d, err = g.Authorize(context.Background(), u, listIntent(), u.ID)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Warning == "" {
		t.Fatal("at 90% a warning should be set")
	}
}

func TestAuthorizeUsageOutsideMonthIgnored(t *testing.T) {
	g, r := newTestGuard(t)
	limit := config.Default().Plans["studio"].MonthlyActions

	u := seedUser(t, r, "studio", "member")
	err := r.InsertUsage(context.Background(), domain.UsageRecord{
		UserID: u.ID, ActionType: "create", Resource: "task", Count: limit,
		CreatedAt: time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("insert usage: %v", err)
	}

	if _, err := g.Authorize(context.Background(), u, listIntent(), u.ID); err != nil {
		t.Fatalf("last month's usage should not count, got %v", err)
	}
}

func TestAuthorizeOwnership(t *testing.T) {
	g, r := newTestGuard(t)

	member := seedUser(t, r, "studio", "member")
	in := intent.Intent{Operation: intent.OpDelete, Resource: intent.ResTask, Params: map[string]any{}}

	_, err := g.Authorize(context.Background(), member, in, "someone-else")
	var perm PermissionDeniedError
	if !errors.As(err, &perm) {
		t.Fatalf("err = %v, want permission denied", err)
	}

	if _, err := g.Authorize(context.Background(), member, in, member.ID); err != nil {
		t.Fatalf("own rows should pass, got %v", err)
	}

	admin := seedUser(t, r, "studio", "admin")
	if _, err := g.Authorize(context.Background(), admin, in, "someone-else"); err != nil {
		t.Fatalf("admin should pass, got %v", err)
	}
}
