package assistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/migrate"
	"gigline/internal/repo"
	"gigline/internal/webhook"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestAssistant(t *testing.T) (*Assistant, repo.Repo, domain.User) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	r := repo.Repo{DB: conn}
	u := domain.User{
		ID:        uuid.New().String(),
		Email:     "freelancer@example.com",
		Name:      "Alex",
		Role:      "member",
		Plan:      "studio",
		CreatedAt: testNow.Format(time.RFC3339),
	}
	require.NoError(t, r.InsertUser(context.Background(), u))

	a := New(r, config.Default(), nil)
	a.Parser.Now = func() time.Time { return testNow }
	a.Executor.Now = func() time.Time { return testNow }
	a.Executor.Audit.Now = func() time.Time { return testNow }
	a.Guard.Now = func() time.Time { return testNow }
	return a, r, u
}

func seedTask(t *testing.T, r repo.Repo, ownerID, title, status string) domain.Task {
	t.Helper()
	now := testNow.Format(time.RFC3339)
	task := domain.Task{
		ID: uuid.New().String(), OwnerID: ownerID, Title: title,
		Status: status, Priority: "medium", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, r.InsertTask(context.Background(), task))
	return task
}

func TestHandleCreateTaskFrench(t *testing.T) {
	a, r, u := newTestAssistant(t)

	resp := a.Handle(context.Background(), u, Request{Message: `Créer une tâche "Test" pour demain à 14h`})
	require.True(t, resp.Success, resp.Text)
	require.Contains(t, resp.Text, "Test")

	tasks, err := r.ListTasks(context.Background(), u.ID, repo.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "Test", tasks[0].Title)
	require.Equal(t, "pending", tasks[0].Status)
	require.NotNil(t, tasks[0].DueDate)
	require.Equal(t, "2026-03-11T14:00:00Z", *tasks[0].DueDate)
}

func TestHandleRecordsUsageAndAudit(t *testing.T) {
	a, r, u := newTestAssistant(t)

	resp := a.Handle(context.Background(), u, Request{Message: `Create a task "Invoice"`})
	require.True(t, resp.Success, resp.Text)

	used, err := r.MonthlyUsage(context.Background(), u.ID, testNow)
	require.NoError(t, err)
	require.Equal(t, 1, used)

	entries, err := r.ListAudit(context.Background(), u.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "create task", entries[0].Summary)
}

func TestHandleBulkDeleteNeedsConfirmation(t *testing.T) {
	a, r, u := newTestAssistant(t)
	for _, title := range []string{"a", "b", "c"} {
		seedTask(t, r, u.ID, title, "completed")
	}
	seedTask(t, r, u.ID, "keep", "pending")

	resp := a.Handle(context.Background(), u, Request{Message: "Supprimer toutes les tâches terminées"})
	require.True(t, resp.RequiresConfirmation)
	require.NotNil(t, resp.Pending)
	require.Len(t, resp.Pending.TargetIDs, 3)
	require.Contains(t, resp.Text, "3")

	// Nothing deleted yet.
	tasks, err := r.ListTasks(context.Background(), u.ID, repo.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, tasks, 4)

	confirmed := a.Handle(context.Background(), u, Request{Message: "oui", Pending: resp.Pending})
	require.True(t, confirmed.Success, confirmed.Text)
	require.Contains(t, confirmed.Text, "3")

	tasks, err = r.ListTasks(context.Background(), u.ID, repo.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "keep", tasks[0].Title)
}

func TestHandleDateFilteredDeleteStagesOnlyMatches(t *testing.T) {
	a, r, u := newTestAssistant(t)

	soon := seedTask(t, r, u.ID, "call the studio", "pending")
	soonDue := "2026-03-11T09:30:00Z"
	soon.DueDate = &soonDue
	require.NoError(t, r.UpdateTask(context.Background(), soon))

	later := seedTask(t, r, u.ID, "renew hosting", "pending")
	laterDue := "2026-04-20T09:30:00Z"
	later.DueDate = &laterDue
	require.NoError(t, r.UpdateTask(context.Background(), later))

	resp := a.Handle(context.Background(), u, Request{Message: "Supprimer les tâches de demain"})
	require.True(t, resp.RequiresConfirmation)
	require.Equal(t, []string{soon.ID}, resp.Pending.TargetIDs)

	confirmed := a.Handle(context.Background(), u, Request{Message: "oui", Pending: resp.Pending})
	require.True(t, confirmed.Success, confirmed.Text)

	_, err := r.GetTask(context.Background(), u.ID, soon.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)
	kept, err := r.GetTask(context.Background(), u.ID, later.ID)
	require.NoError(t, err)
	require.Equal(t, "renew hosting", kept.Title)
}

func TestHandleBulkUpdateConfirmsAndApplies(t *testing.T) {
	a, r, u := newTestAssistant(t)
	for i := 0; i < 6; i++ {
		seedTask(t, r, u.ID, "chore", "pending")
	}

	resp := a.Handle(context.Background(), u, Request{Message: "Update all my tasks to completed"})
	require.True(t, resp.RequiresConfirmation, resp.Text)
	require.NotNil(t, resp.Pending)
	require.Equal(t, "update", resp.Pending.Operation)
	require.Len(t, resp.Pending.TargetIDs, 6)

	// Nothing changed before the confirmation.
	pending, err := r.ListTasks(context.Background(), u.ID, repo.ListFilter{Status: "pending", Limit: 10})
	require.NoError(t, err)
	require.Len(t, pending, 6)

	confirmed := a.Handle(context.Background(), u, Request{Message: "oui", Pending: resp.Pending})
	require.True(t, confirmed.Success, confirmed.Text)
	require.Contains(t, confirmed.Text, "6")

	done, err := r.ListTasks(context.Background(), u.ID, repo.ListFilter{Status: "completed", Limit: 10})
	require.NoError(t, err)
	require.Len(t, done, 6)
}

func TestHandleSmallBulkUpdateAppliesDirectly(t *testing.T) {
	a, r, u := newTestAssistant(t)
	for i := 0; i < 3; i++ {
		seedTask(t, r, u.ID, "chore", "pending")
	}

	resp := a.Handle(context.Background(), u, Request{Message: "Update all my tasks to completed"})
	require.False(t, resp.RequiresConfirmation, resp.Text)
	require.True(t, resp.Success, resp.Text)
	require.Contains(t, resp.Text, "3 task(s) updated")

	done, err := r.ListTasks(context.Background(), u.ID, repo.ListFilter{Status: "completed", Limit: 10})
	require.NoError(t, err)
	require.Len(t, done, 3)
}

func TestHandleStaleUpdateConfirmationReportsFailure(t *testing.T) {
	a, r, u := newTestAssistant(t)
	task := seedTask(t, r, u.ID, "untouched", "pending")

	// A confirmation whose targets no longer resolve must not claim success.
	for _, targets := range [][]string{nil, {"vanished-row"}} {
		resp := a.Handle(context.Background(), u, Request{
			Message: "oui",
			Pending: &Confirmation{
				Resource:  "task",
				Operation: "update",
				TargetIDs: targets,
				Payload:   map[string]any{"status": "completed"},
			},
		})
		require.False(t, resp.Success, resp.Text)
		require.NotContains(t, resp.Text, "✅")
	}

	got, err := r.GetTask(context.Background(), u.ID, task.ID)
	require.NoError(t, err)
	require.Equal(t, "pending", got.Status)
}

func TestHandleNegativeReplyCancels(t *testing.T) {
	a, r, u := newTestAssistant(t)
	seedTask(t, r, u.ID, "survivor", "completed")

	resp := a.Handle(context.Background(), u, Request{Message: "Supprimer toutes les tâches terminées"})
	require.True(t, resp.RequiresConfirmation)

	cancelled := a.Handle(context.Background(), u, Request{Message: "non", Pending: resp.Pending})
	require.True(t, cancelled.Success)
	require.Contains(t, cancelled.Text, "cancelled")
	require.False(t, cancelled.RequiresConfirmation)

	tasks, err := r.ListTasks(context.Background(), u.ID, repo.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestHandleDeleteWithNoMatchesShortCircuits(t *testing.T) {
	a, _, u := newTestAssistant(t)

	resp := a.Handle(context.Background(), u, Request{Message: "Supprimer toutes les tâches terminées"})
	require.False(t, resp.RequiresConfirmation)
	require.Contains(t, resp.Text, "nothing to delete")
}

func TestHandleEntitlementDenied(t *testing.T) {
	a, r, _ := newTestAssistant(t)
	free := domain.User{
		ID: uuid.New().String(), Email: "free@example.com",
		Role: "member", Plan: "free", CreatedAt: testNow.Format(time.RFC3339),
	}
	require.NoError(t, r.InsertUser(context.Background(), free))

	resp := a.Handle(context.Background(), free, Request{Message: "list my tasks"})
	require.False(t, resp.Success)
	require.Contains(t, resp.Text, "studio")
}

func TestHandleQuotaExceeded(t *testing.T) {
	a, r, u := newTestAssistant(t)
	limit := config.Default().Plans["studio"].MonthlyActions
	require.NoError(t, r.InsertUsage(context.Background(), domain.UsageRecord{
		UserID: u.ID, ActionType: "create", Resource: "task", Count: limit,
		CreatedAt: testNow.Format(time.RFC3339),
	}))

	resp := a.Handle(context.Background(), u, Request{Message: "list my tasks"})
	require.False(t, resp.Success)
	require.Contains(t, resp.Text, "monthly limit")
	require.Contains(t, resp.Text, "0 remaining")
}

func TestHandleValidationFailureExplainsField(t *testing.T) {
	a, _, u := newTestAssistant(t)

	resp := a.Handle(context.Background(), u, Request{Message: "Créer une tâche"})
	require.False(t, resp.Success)
	require.Contains(t, resp.Text, "title")
}

func TestHandleEmptyMessage(t *testing.T) {
	a, _, u := newTestAssistant(t)

	resp := a.Handle(context.Background(), u, Request{Message: "   "})
	require.False(t, resp.Success)
	require.Contains(t, resp.Text, "for example")
}

func TestHandleRecoversFromPanic(t *testing.T) {
	// A nil DB makes the guard panic; the reply must stay conversational.
	a := New(repo.Repo{}, config.Default(), nil)
	u := domain.User{ID: "u1", Plan: "studio", Role: "member"}

	resp := a.Handle(context.Background(), u, Request{Message: "list my tasks"})
	require.False(t, resp.Success)
	require.Contains(t, resp.Text, "went wrong")
}

func TestHandleFiresWebhookOnMutation(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, _, u := newTestAssistant(t)
	a.Webhook = webhook.New(srv.URL, "secret")

	resp := a.Handle(context.Background(), u, Request{Message: `Create a task "Ping"`})
	require.True(t, resp.Success, resp.Text)

	select {
	case path := <-received:
		require.Equal(t, "/webhook/task.created", path)
	case <-time.After(3 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestHandleSlashDeleteSingleTarget(t *testing.T) {
	a, r, u := newTestAssistant(t)
	task := seedTask(t, r, u.ID, "doomed", "pending")

	resp := a.Handle(context.Background(), u, Request{Message: "/delete task " + task.ID})
	require.True(t, resp.RequiresConfirmation)
	require.Equal(t, []string{task.ID}, resp.Pending.TargetIDs)

	confirmed := a.Handle(context.Background(), u, Request{Message: "yes", Pending: resp.Pending})
	require.True(t, confirmed.Success, confirmed.Text)

	_, err := r.GetTask(context.Background(), u.ID, task.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestHandleQuotaWarningAppended(t *testing.T) {
	a, r, u := newTestAssistant(t)
	limit := config.Default().Plans["studio"].MonthlyActions
	require.NoError(t, r.InsertUsage(context.Background(), domain.UsageRecord{
		UserID: u.ID, ActionType: "create", Resource: "task", Count: limit * 9 / 10,
		CreatedAt: testNow.Format(time.RFC3339),
	}))

	resp := a.Handle(context.Background(), u, Request{Message: "list my tasks"})
	require.True(t, resp.Success, resp.Text)
	require.Contains(t, resp.Text, "monthly actions")
}

func TestExecutorListCapsResults(t *testing.T) {
	a, r, u := newTestAssistant(t)
	for i := 0; i < 25; i++ {
		seedTask(t, r, u.ID, "task", "pending")
	}

	res := a.Executor.Execute(context.Background(), u, a.Parser.Parse("list my tasks"), map[string]any{}, nil)
	require.True(t, res.Success)
	tasks, ok := res.Data.([]domain.Task)
	require.True(t, ok)
	require.Len(t, tasks, defaultListLimit)
}
