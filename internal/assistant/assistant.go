// Package assistant wires the chat pipeline: parse the message, validate
// the parameters, authorize the user, gate destructive intents behind a
// confirmation turn, then execute against the store. The pipeline itself
// is stateless; pending confirmations travel with the caller.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gigline/internal/assistant/confirm"
	"gigline/internal/assistant/guard"
	"gigline/internal/assistant/intent"
	"gigline/internal/assistant/schema"
	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/repo"
	"gigline/internal/webhook"
)

// Confirmation is the staged state of an intent awaiting the user's reply.
// The caller holds it between turns and hands it back with the next
// message; the ids were resolved when the prompt was issued, so a confirmed
// delete removes exactly the rows the user was shown.
type Confirmation struct {
	Resource  string         `json:"resource"`
	Operation string         `json:"operation"`
	TargetIDs []string       `json:"target_ids"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Request is one user turn.
type Request struct {
	Message string        `json:"message"`
	Pending *Confirmation `json:"pending,omitempty"`
}

// Response is the assistant's reply for one turn. When
// RequiresConfirmation is set, Pending must be echoed back with the user's
// next message.
type Response struct {
	Success              bool          `json:"success"`
	Text                 string        `json:"text"`
	RequiresConfirmation bool          `json:"requires_confirmation,omitempty"`
	Pending              *Confirmation `json:"pending,omitempty"`
	Data                 any           `json:"data,omitempty"`
}

type Assistant struct {
	Parser   *intent.Parser
	Guard    guard.Guard
	Executor Executor
	Webhook  *webhook.Notifier
	Config   *config.Config
}

func New(r repo.Repo, cfg *config.Config, wh *webhook.Notifier) *Assistant {
	return &Assistant{
		Parser:   intent.NewParser(),
		Guard:    guard.New(r, cfg),
		Executor: NewExecutor(r),
		Webhook:  wh,
		Config:   cfg,
	}
}

// Handle runs one conversation turn. It never returns an error: every
// failure, including a panic anywhere in the pipeline, becomes a polite
// reply so the conversation can continue.
func (a *Assistant) Handle(ctx context.Context, user domain.User, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("assistant: recovered: %v", r)
			resp = Response{Text: "😕 Sorry, something went wrong. Please try again."}
		}
	}()

	if req.Pending != nil {
		return a.resolvePending(ctx, user, req)
	}
	return a.handleMessage(ctx, user, req.Message)
}

// resolvePending consumes a staged confirmation. Anything but an explicit
// affirmation cancels; the message is not re-parsed as a new intent, which
// keeps "no, delete the other one" from firing a second delete.
func (a *Assistant) resolvePending(ctx context.Context, user domain.User, req Request) Response {
	if !confirm.IsAffirmative(req.Message) {
		return Response{Success: true, Text: "Okay, cancelled. Nothing was changed."}
	}

	in := intent.Intent{
		Operation: intent.Operation(req.Pending.Operation),
		Resource:  intent.Resource(req.Pending.Resource),
		Params:    req.Pending.Payload,
	}
	if in.Params == nil {
		in.Params = map[string]any{}
	}

	// Re-authorize at execution time: the quota or plan may have changed
	// between the prompt and the reply.
	decision, err := a.Guard.Authorize(ctx, user, in, user.ID)
	if err != nil {
		return Response{Text: guardText(err)}
	}

	payload := schema.Payload(req.Pending.Payload)
	if payload == nil {
		payload = schema.Payload{}
	}

	var res Result
	if in.Operation == intent.OpUpdate {
		res = a.executeStagedUpdate(ctx, user, in, payload, req.Pending.TargetIDs)
	} else {
		res = a.Executor.Execute(ctx, user, in, payload, req.Pending.TargetIDs)
	}
	if res.Success {
		a.notify(user, in, res)
	}
	return Response{Success: res.Success, Text: withWarning(res.Message, decision.Warning), Data: res.Data}
}

// executeStagedUpdate applies the staged payload to every target row. One
// failing row does not abort the rest.
func (a *Assistant) executeStagedUpdate(ctx context.Context, user domain.User, in intent.Intent, payload schema.Payload, ids []string) Result {
	updated := 0
	for _, id := range ids {
		p := schema.Payload{}
		for k, v := range payload {
			p[k] = v
		}
		p["id"] = id
		if r := a.Executor.Execute(ctx, user, in, p, nil); r.Success {
			updated++
		}
	}
	if updated == 0 {
		return Result{Message: fmt.Sprintf("❌ Could not update any %ss. They may have been removed.", in.Resource)}
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("✅ %d %s(s) updated.", updated, in.Resource),
	}
}

// isBulkUpdate reports an update with no explicit target id: its target
// set comes from filters and is resolved before execution.
func isBulkUpdate(in intent.Intent, payload schema.Payload) bool {
	if in.Operation != intent.OpUpdate {
		return false
	}
	id, _ := payload["id"].(string)
	return id == ""
}

func (a *Assistant) handleMessage(ctx context.Context, user domain.User, message string) Response {
	if strings.TrimSpace(message) == "" {
		return Response{Text: "Tell me what you need, for example: create a task \"Send the invoice\" for tomorrow."}
	}

	in := a.Parser.Parse(message)

	payload, err := schema.Validate(in.Resource, in.Operation, in.Params)
	if err != nil {
		var ve schema.ValidationError
		if errors.As(err, &ve) {
			return Response{Text: fmt.Sprintf("🤔 I understood a %s %s, but %s %s.", in.Operation, in.Resource, ve.Field, ve.Reason)}
		}
		return Response{Text: "🤔 I could not make sense of that request."}
	}

	decision, err := a.Guard.Authorize(ctx, user, in, user.ID)
	if err != nil {
		return Response{Text: guardText(err)}
	}

	if in.Operation == intent.OpDelete || isBulkUpdate(in, payload) {
		return a.dispatchStaged(ctx, user, in, payload, decision)
	}

	res := a.Executor.Execute(ctx, user, in, payload, nil)
	if res.Success && in.Operation != intent.OpRead && in.Operation != intent.OpList {
		a.notify(user, in, res)
	}
	return Response{Success: res.Success, Text: withWarning(res.Message, decision.Warning), Data: res.Data}
}

// dispatchStaged resolves the rows a destructive intent would touch, then
// either stages the confirmation prompt or, for a small bulk update,
// applies it straight away. Nothing is mutated before the gate decides.
func (a *Assistant) dispatchStaged(ctx context.Context, user domain.User, in intent.Intent, payload schema.Payload, decision guard.Decision) Response {
	ids, err := a.Executor.ResolveTargets(ctx, user, in, payload)
	if err != nil {
		log.Printf("assistant: resolve targets: %v", err)
		return Response{Text: fmt.Sprintf("❌ Could not %s %s. Please try again.", in.Operation, in.Resource)}
	}
	verb := "delete"
	if in.Operation == intent.OpUpdate {
		verb = "update"
	}
	if len(ids) == 0 {
		return Response{Success: true, Text: fmt.Sprintf("No matching %ss, nothing to %s.", in.Resource, verb)}
	}

	if confirm.Requires(in, len(ids), a.bulkThreshold()) {
		pending := &Confirmation{
			Resource:  string(in.Resource),
			Operation: string(in.Operation),
			TargetIDs: ids,
			Payload:   payload,
		}
		return Response{
			Success:              true,
			Text:                 confirm.Prompt(in, len(ids)),
			RequiresConfirmation: true,
			Pending:              pending,
		}
	}

	res := a.executeStagedUpdate(ctx, user, in, payload, ids)
	if res.Success {
		a.notify(user, in, res)
	}
	return Response{Success: res.Success, Text: withWarning(res.Message, decision.Warning), Data: res.Data}
}

func (a *Assistant) bulkThreshold() int {
	if a.Config != nil && a.Config.Assistant.BulkThreshold > 0 {
		return a.Config.Assistant.BulkThreshold
	}
	return confirm.DefaultBulkThreshold
}

// notify fires the webhook off-turn; delivery failures never affect the
// reply.
func (a *Assistant) notify(user domain.User, in intent.Intent, res Result) {
	if a.Webhook == nil || !a.Webhook.Configured() {
		return
	}
	event := fmt.Sprintf("%s.%s", in.Resource, pastTense(in.Operation))
	payload := map[string]any{
		"user_id":   user.ID,
		"resource":  string(in.Resource),
		"operation": string(in.Operation),
		"message":   res.Message,
		"data":      res.Data,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		a.Webhook.Deliver(ctx, event, payload)
	}()
}

func pastTense(op intent.Operation) string {
	switch op {
	case intent.OpCreate:
		return "created"
	case intent.OpUpdate:
		return "updated"
	case intent.OpDelete:
		return "deleted"
	default:
		return string(op)
	}
}

func guardText(err error) string {
	var ent guard.EntitlementDeniedError
	if errors.As(err, &ent) {
		return fmt.Sprintf("🔒 The assistant is part of the %s plan. Your current plan is %s.", ent.Required, ent.Plan)
	}
	var quota guard.QuotaExceededError
	if errors.As(err, &quota) {
		return fmt.Sprintf("🔒 You have reached your monthly limit of %d actions (%d remaining). Your quota resets next month.", quota.Limit, quota.Remaining())
	}
	var perm guard.PermissionDeniedError
	if errors.As(err, &perm) {
		return fmt.Sprintf("🔒 %s.", capitalize(perm.Error()))
	}
	log.Printf("assistant: authorize: %v", err)
	return "😕 Sorry, something went wrong. Please try again."
}

func withWarning(text, warning string) string {
	if warning == "" {
		return text
	}
	return text + " ⚠️ " + capitalize(warning) + "."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

