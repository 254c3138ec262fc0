package assistant

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"gigline/internal/assistant/intent"
	"gigline/internal/assistant/schema"
	"gigline/internal/audit"
	"gigline/internal/domain"
	"gigline/internal/repo"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Result is the uniform envelope every handler returns. Backend errors are
// never surfaced raw: they are logged and rewrapped into a generic message
// naming the attempted operation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Executor performs the store operation for one authorized intent. Every
// query and mutation is scoped to the acting user's rows; the owner filter
// comes from the authenticated user, never from caller input.
type Executor struct {
	Repo  repo.Repo
	Audit audit.Recorder
	Now   func() time.Time
}

func NewExecutor(r repo.Repo) Executor {
	return Executor{Repo: r, Audit: audit.New(r), Now: time.Now}
}

func (ex Executor) now() time.Time {
	if ex.Now != nil {
		return ex.Now()
	}
	return time.Now()
}

// Execute dispatches on (resource, operation). targetIDs carries the staged
// target set for confirmed deletes; it is empty for everything else.
func (ex Executor) Execute(ctx context.Context, user domain.User, in intent.Intent, payload schema.Payload, targetIDs []string) Result {
	var res Result
	switch in.Resource {
	case intent.ResTask:
		res = ex.executeTask(ctx, user, in, payload, targetIDs)
	case intent.ResClient:
		res = ex.executeClient(ctx, user, in, payload, targetIDs)
	case intent.ResOrder:
		res = ex.executeOrder(ctx, user, in, payload, targetIDs)
	case intent.ResEvent:
		res = ex.executeEvent(ctx, user, in, payload, targetIDs)
	default:
		res = Result{Message: fmt.Sprintf("❌ Unknown resource %q.", in.Resource)}
	}
	if res.Success {
		ex.recordUsage(ctx, user.ID, in)
		ex.Audit.Record(ctx, user.ID, fmt.Sprintf("%s %s", in.Operation, in.Resource), string(in.Resource), payload, res)
	}
	return res
}

// ResolveTargets computes the exact ids a staged delete or bulk update
// would touch, so the confirmation turn can stage them. An explicit id
// targets just that row; otherwise the payload's filters select the set.
// For updates the non-filter fields are the values being written, so only
// search and client scope narrow the target set.
func (ex Executor) ResolveTargets(ctx context.Context, user domain.User, in intent.Intent, payload schema.Payload) ([]string, error) {
	if id, ok := payload["id"].(string); ok && id != "" {
		return []string{id}, nil
	}
	if in.Operation == intent.OpUpdate {
		filters := schema.Payload{}
		for _, k := range []string{"search", "client_id"} {
			if v, ok := payload[k]; ok {
				filters[k] = v
			}
		}
		payload = filters
	}
	f := listFilterFrom(payload, ex.now())
	f.Limit = 0
	switch in.Resource {
	case intent.ResClient:
		return ex.Repo.ListClientIDs(ctx, user.ID, f)
	case intent.ResOrder:
		return ex.Repo.ListOrderIDs(ctx, user.ID, f)
	case intent.ResEvent:
		return ex.Repo.ListEventIDs(ctx, user.ID, f)
	default:
		return ex.Repo.ListTaskIDs(ctx, user.ID, f)
	}
}

func (ex Executor) recordUsage(ctx context.Context, userID string, in intent.Intent) {
	rec := domain.UsageRecord{
		UserID:     userID,
		ActionType: string(in.Operation),
		Resource:   string(in.Resource),
		Count:      1,
		CreatedAt:  ex.now().UTC().Format(time.RFC3339),
	}
	if err := ex.Repo.InsertUsage(ctx, rec); err != nil {
		log.Printf("usage: record failed: %v", err)
	}
}

func (ex Executor) fail(op intent.Operation, res intent.Resource, err error) Result {
	log.Printf("executor: %s %s failed: %v", op, res, err)
	return Result{Message: fmt.Sprintf("❌ Could not %s %s. Please try again.", op, res)}
}

// --- tasks ---

func (ex Executor) executeTask(ctx context.Context, user domain.User, in intent.Intent, payload schema.Payload, targetIDs []string) Result {
	switch in.Operation {
	case intent.OpCreate:
		now := ex.now().UTC().Format(time.RFC3339)
		t := domain.Task{
			ID:        uuid.New().String(),
			OwnerID:   user.ID,
			Title:     payloadString(payload, "title"),
			Status:    payloadString(payload, "status"),
			Priority:  payloadString(payload, "priority"),
			CreatedAt: now,
			UpdatedAt: now,
		}
		t.Description = payloadString(payload, "description")
		t.ClientID = payloadStringPtr(payload, "client_id")
		t.DueDate = payloadTimePtr(payload, "due_date")
		if err := ex.Repo.InsertTask(ctx, t); err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("✅ Task %q created.", t.Title), Data: t}

	case intent.OpRead:
		if id := payloadString(payload, "id"); id != "" {
			t, err := ex.Repo.GetTask(ctx, user.ID, id)
			if err == repo.ErrNotFound {
				return Result{Message: "Task not found."}
			}
			if err != nil {
				return ex.fail(in.Operation, in.Resource, err)
			}
			return Result{Success: true, Message: fmt.Sprintf("📋 %s (%s, %s priority)", t.Title, t.Status, t.Priority), Data: t}
		}
		f := listFilterFrom(payload, ex.now())
		f.Limit = 1
		items, err := ex.Repo.ListTasks(ctx, user.ID, f)
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		if len(items) == 0 {
			return Result{Message: "Task not found."}
		}
		t := items[0]
		return Result{Success: true, Message: fmt.Sprintf("📋 %s (%s, %s priority)", t.Title, t.Status, t.Priority), Data: t}

	case intent.OpList:
		items, err := ex.Repo.ListTasks(ctx, user.ID, listFilterFrom(payload, ex.now()))
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("📋 %d task(s) found.", len(items)), Data: items}

	case intent.OpUpdate:
		id := payloadString(payload, "id")
		t, err := ex.Repo.GetTask(ctx, user.ID, id)
		if err == repo.ErrNotFound {
			return Result{Message: "Task not found."}
		}
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		applyTaskPayload(&t, payload)
		t.UpdatedAt = ex.now().UTC().Format(time.RFC3339)
		if err := ex.Repo.UpdateTask(ctx, t); err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("✅ Task %q updated.", t.Title), Data: t}

	case intent.OpDelete:
		n, err := ex.Repo.DeleteTasks(ctx, user.ID, targetIDs)
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("🗑️ %d task(s) deleted.", n)}
	}
	return Result{Message: fmt.Sprintf("❌ Unsupported operation %q.", in.Operation)}
}

func applyTaskPayload(t *domain.Task, payload schema.Payload) {
	if v := payloadString(payload, "title"); v != "" {
		t.Title = v
	}
	if v := payloadString(payload, "description"); v != "" {
		t.Description = v
	}
	if v := payloadString(payload, "status"); v != "" {
		t.Status = v
	}
	if v := payloadString(payload, "priority"); v != "" {
		t.Priority = v
	}
	if v := payloadStringPtr(payload, "client_id"); v != nil {
		t.ClientID = v
	}
	if v := payloadTimePtr(payload, "due_date"); v != nil {
		t.DueDate = v
	}
}

// --- clients ---

func (ex Executor) executeClient(ctx context.Context, user domain.User, in intent.Intent, payload schema.Payload, targetIDs []string) Result {
	switch in.Operation {
	case intent.OpCreate:
		now := ex.now().UTC().Format(time.RFC3339)
		c := domain.Client{
			ID:        uuid.New().String(),
			OwnerID:   user.ID,
			Name:      payloadString(payload, "name"),
			Email:     payloadString(payload, "email"),
			Phone:     payloadString(payload, "phone"),
			Company:   payloadString(payload, "company"),
			Notes:     payloadString(payload, "notes"),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := ex.Repo.InsertClient(ctx, c); err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("✅ Client %q created.", c.Name), Data: c}

	case intent.OpRead:
		if id := payloadString(payload, "id"); id != "" {
			c, err := ex.Repo.GetClient(ctx, user.ID, id)
			if err == repo.ErrNotFound {
				return Result{Message: "Client not found."}
			}
			if err != nil {
				return ex.fail(in.Operation, in.Resource, err)
			}
			return Result{Success: true, Message: fmt.Sprintf("👤 %s (%s)", c.Name, c.Email), Data: c}
		}
		f := listFilterFrom(payload, ex.now())
		f.Limit = 1
		items, err := ex.Repo.ListClients(ctx, user.ID, f)
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		if len(items) == 0 {
			return Result{Message: "Client not found."}
		}
		c := items[0]
		return Result{Success: true, Message: fmt.Sprintf("👤 %s (%s)", c.Name, c.Email), Data: c}

	case intent.OpList:
		items, err := ex.Repo.ListClients(ctx, user.ID, listFilterFrom(payload, ex.now()))
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("👤 %d client(s) found.", len(items)), Data: items}

	case intent.OpUpdate:
		id := payloadString(payload, "id")
		c, err := ex.Repo.GetClient(ctx, user.ID, id)
		if err == repo.ErrNotFound {
			return Result{Message: "Client not found."}
		}
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		if v := payloadString(payload, "name"); v != "" {
			c.Name = v
		}
		if v := payloadString(payload, "email"); v != "" {
			c.Email = v
		}
		if v := payloadString(payload, "phone"); v != "" {
			c.Phone = v
		}
		if v := payloadString(payload, "company"); v != "" {
			c.Company = v
		}
		if v := payloadString(payload, "notes"); v != "" {
			c.Notes = v
		}
		c.UpdatedAt = ex.now().UTC().Format(time.RFC3339)
		if err := ex.Repo.UpdateClient(ctx, c); err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("✅ Client %q updated.", c.Name), Data: c}

	case intent.OpDelete:
		n, err := ex.Repo.DeleteClients(ctx, user.ID, targetIDs)
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("🗑️ %d client(s) deleted.", n)}
	}
	return Result{Message: fmt.Sprintf("❌ Unsupported operation %q.", in.Operation)}
}

// --- orders ---

func (ex Executor) executeOrder(ctx context.Context, user domain.User, in intent.Intent, payload schema.Payload, targetIDs []string) Result {
	switch in.Operation {
	case intent.OpCreate:
		now := ex.now().UTC().Format(time.RFC3339)
		o := domain.Order{
			ID:        uuid.New().String(),
			OwnerID:   user.ID,
			Title:     payloadString(payload, "title"),
			Amount:    payloadFloat(payload, "amount"),
			Currency:  payloadString(payload, "currency"),
			Status:    payloadString(payload, "status"),
			CreatedAt: now,
			UpdatedAt: now,
		}
		o.ClientID = payloadStringPtr(payload, "client_id")
		if err := ex.Repo.InsertOrder(ctx, o); err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("✅ Order %q created (%.2f %s).", o.Title, o.Amount, o.Currency), Data: o}

	case intent.OpRead:
		if id := payloadString(payload, "id"); id != "" {
			o, err := ex.Repo.GetOrder(ctx, user.ID, id)
			if err == repo.ErrNotFound {
				return Result{Message: "Order not found."}
			}
			if err != nil {
				return ex.fail(in.Operation, in.Resource, err)
			}
			return Result{Success: true, Message: fmt.Sprintf("🧾 %s — %.2f %s (%s)", o.Title, o.Amount, o.Currency, o.Status), Data: o}
		}
		f := listFilterFrom(payload, ex.now())
		f.Limit = 1
		items, err := ex.Repo.ListOrders(ctx, user.ID, f)
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		if len(items) == 0 {
			return Result{Message: "Order not found."}
		}
		o := items[0]
		return Result{Success: true, Message: fmt.Sprintf("🧾 %s — %.2f %s (%s)", o.Title, o.Amount, o.Currency, o.Status), Data: o}

	case intent.OpList:
		items, err := ex.Repo.ListOrders(ctx, user.ID, listFilterFrom(payload, ex.now()))
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("🧾 %d order(s) found.", len(items)), Data: items}

	case intent.OpUpdate:
		id := payloadString(payload, "id")
		o, err := ex.Repo.GetOrder(ctx, user.ID, id)
		if err == repo.ErrNotFound {
			return Result{Message: "Order not found."}
		}
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		if v := payloadString(payload, "title"); v != "" {
			o.Title = v
		}
		if _, ok := payload["amount"]; ok {
			o.Amount = payloadFloat(payload, "amount")
		}
		if v := payloadString(payload, "currency"); v != "" {
			o.Currency = v
		}
		if v := payloadString(payload, "status"); v != "" {
			o.Status = v
		}
		if v := payloadStringPtr(payload, "client_id"); v != nil {
			o.ClientID = v
		}
		o.UpdatedAt = ex.now().UTC().Format(time.RFC3339)
		if err := ex.Repo.UpdateOrder(ctx, o); err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("✅ Order %q updated.", o.Title), Data: o}

	case intent.OpDelete:
		n, err := ex.Repo.DeleteOrders(ctx, user.ID, targetIDs)
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("🗑️ %d order(s) deleted.", n)}
	}
	return Result{Message: fmt.Sprintf("❌ Unsupported operation %q.", in.Operation)}
}

// --- calendar events ---

func (ex Executor) executeEvent(ctx context.Context, user domain.User, in intent.Intent, payload schema.Payload, targetIDs []string) Result {
	switch in.Operation {
	case intent.OpCreate:
		now := ex.now().UTC().Format(time.RFC3339)
		e := domain.CalendarEvent{
			ID:        uuid.New().String(),
			OwnerID:   user.ID,
			Title:     payloadString(payload, "title"),
			Location:  payloadString(payload, "location"),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if start := payloadTimePtr(payload, "start_at"); start != nil {
			e.StartAt = *start
		}
		e.EndAt = payloadTimePtr(payload, "end_at")
		e.ClientID = payloadStringPtr(payload, "client_id")
		if err := ex.Repo.InsertEvent(ctx, e); err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("✅ Event %q scheduled.", e.Title), Data: e}

	case intent.OpRead:
		if id := payloadString(payload, "id"); id != "" {
			e, err := ex.Repo.GetEvent(ctx, user.ID, id)
			if err == repo.ErrNotFound {
				return Result{Message: "Event not found."}
			}
			if err != nil {
				return ex.fail(in.Operation, in.Resource, err)
			}
			return Result{Success: true, Message: fmt.Sprintf("📅 %s at %s", e.Title, e.StartAt), Data: e}
		}
		f := listFilterFrom(payload, ex.now())
		f.Limit = 1
		items, err := ex.Repo.ListEvents(ctx, user.ID, f)
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		if len(items) == 0 {
			return Result{Message: "Event not found."}
		}
		e := items[0]
		return Result{Success: true, Message: fmt.Sprintf("📅 %s at %s", e.Title, e.StartAt), Data: e}

	case intent.OpList:
		items, err := ex.Repo.ListEvents(ctx, user.ID, listFilterFrom(payload, ex.now()))
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("📅 %d event(s) found.", len(items)), Data: items}

	case intent.OpUpdate:
		id := payloadString(payload, "id")
		e, err := ex.Repo.GetEvent(ctx, user.ID, id)
		if err == repo.ErrNotFound {
			return Result{Message: "Event not found."}
		}
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		if v := payloadString(payload, "title"); v != "" {
			e.Title = v
		}
		if v := payloadString(payload, "location"); v != "" {
			e.Location = v
		}
		if v := payloadTimePtr(payload, "start_at"); v != nil {
			e.StartAt = *v
		}
		if v := payloadTimePtr(payload, "end_at"); v != nil {
			e.EndAt = v
		}
		if v := payloadStringPtr(payload, "client_id"); v != nil {
			e.ClientID = v
		}
		e.UpdatedAt = ex.now().UTC().Format(time.RFC3339)
		if err := ex.Repo.UpdateEvent(ctx, e); err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("✅ Event %q updated.", e.Title), Data: e}

	case intent.OpDelete:
		n, err := ex.Repo.DeleteEvents(ctx, user.ID, targetIDs)
		if err != nil {
			return ex.fail(in.Operation, in.Resource, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("🗑️ %d event(s) deleted.", n)}
	}
	return Result{Message: fmt.Sprintf("❌ Unsupported operation %q.", in.Operation)}
}

// --- payload helpers ---

func payloadString(p schema.Payload, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadStringPtr(p schema.Payload, key string) *string {
	if v, ok := p[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

func payloadFloat(p schema.Payload, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func payloadTimePtr(p schema.Payload, key string) *string {
	switch v := p[key].(type) {
	case time.Time:
		s := v.UTC().Format(time.RFC3339)
		return &s
	case string:
		if v != "" {
			return &v
		}
	}
	return nil
}

// listFilterFrom maps payload fields to list constraints. A concrete date in
// the payload buckets the list to that calendar day.
func listFilterFrom(payload schema.Payload, now time.Time) repo.ListFilter {
	f := repo.ListFilter{Limit: defaultListLimit}
	if v, ok := payload["status"].(string); ok {
		f.Status = v
	}
	if v, ok := payload["client_id"].(string); ok {
		f.ClientID = v
	}
	if v, ok := payload["search"].(string); ok {
		f.Search = v
	}
	if v, ok := payload["count"]; ok {
		switch n := v.(type) {
		case int:
			f.Limit = n
		case float64:
			f.Limit = int(n)
		}
		if f.Limit <= 0 {
			f.Limit = defaultListLimit
		}
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	for _, key := range []string{"due_date", "start_at"} {
		if v, ok := payload[key].(time.Time); ok {
			day := time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
			f.From = day.Format(time.RFC3339)
			f.To = day.AddDate(0, 0, 1).Format(time.RFC3339)
			break
		}
	}
	return f
}
