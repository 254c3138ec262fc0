package schema

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gigline/internal/assistant/intent"
)

func TestValidateCreateTaskAppliesDefaults(t *testing.T) {
	out, err := Validate(intent.ResTask, intent.OpCreate, map[string]any{"title": "Send invoice"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out["status"] != "pending" {
		t.Fatalf("status = %v, want pending", out["status"])
	}
	if out["priority"] != "medium" {
		t.Fatalf("priority = %v, want medium", out["priority"])
	}
}

func TestValidateCreateTaskRequiresTitle(t *testing.T) {
	_, err := Validate(intent.ResTask, intent.OpCreate, map[string]any{})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "title" {
		t.Fatalf("err = %v, want title validation error", err)
	}
}

func TestValidateTitleLength(t *testing.T) {
	long := strings.Repeat("x", 201)
	_, err := Validate(intent.ResTask, intent.OpCreate, map[string]any{"title": long})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "title" {
		t.Fatalf("err = %v, want title length error", err)
	}
}

func TestValidateUpdateRejectsMalformedID(t *testing.T) {
	var ve ValidationError
	_, err := Validate(intent.ResTask, intent.OpUpdate, map[string]any{"id": "no spaces allowed!"})
	if !errors.As(err, &ve) || ve.Field != "id" {
		t.Fatalf("malformed id: err = %v", err)
	}

	out, err := Validate(intent.ResTask, intent.OpUpdate, map[string]any{"id": "42", "status": "completed"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out["id"] != "42" || out["status"] != "completed" {
		t.Fatalf("out = %v", out)
	}
}

func TestValidateUpdateWithoutIDIsBulk(t *testing.T) {
	out, err := Validate(intent.ResTask, intent.OpUpdate, map[string]any{"status": "completed", "search": "invoice"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, ok := out["id"]; ok {
		t.Fatalf("out = %v, should not fabricate an id", out)
	}
	if out["status"] != "completed" || out["search"] != "invoice" {
		t.Fatalf("out = %v", out)
	}
}

func TestValidateDeleteWithoutIDPassesFilters(t *testing.T) {
	out, err := Validate(intent.ResTask, intent.OpDelete, map[string]any{"status": "completed"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out["status"] != "completed" {
		t.Fatalf("out = %v", out)
	}
	if _, ok := out["id"]; ok {
		t.Fatal("delete without a target should not fabricate an id")
	}
}

func TestValidateRejectsBadEnum(t *testing.T) {
	_, err := Validate(intent.ResTask, intent.OpCreate, map[string]any{"title": "x", "status": "archived"})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("err = %v, want status enum error", err)
	}
}

func TestValidateClientEmail(t *testing.T) {
	_, err := Validate(intent.ResClient, intent.OpCreate, map[string]any{"name": "Acme", "email": "not-an-email"})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "email" {
		t.Fatalf("err = %v, want email error", err)
	}

	out, err := Validate(intent.ResClient, intent.OpCreate, map[string]any{"name": "Acme", "email": "acme@example.com"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out["email"] != "acme@example.com" {
		t.Fatalf("out = %v", out)
	}
}

func TestValidateOrderDefaultsAndAmount(t *testing.T) {
	out, err := Validate(intent.ResOrder, intent.OpCreate, map[string]any{"title": "Site", "amount": float64(1500)})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out["currency"] != "EUR" || out["status"] != "draft" {
		t.Fatalf("defaults not applied: %v", out)
	}

	_, err = Validate(intent.ResOrder, intent.OpCreate, map[string]any{"title": "Site", "amount": float64(-5)})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "amount" {
		t.Fatalf("err = %v, want amount error", err)
	}
}

func TestValidateEventRemapsDueDate(t *testing.T) {
	when := time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)
	out, err := Validate(intent.ResEvent, intent.OpCreate, map[string]any{"title": "Kickoff", "due_date": when})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	start, ok := out["start_at"].(time.Time)
	if !ok || !start.Equal(when) {
		t.Fatalf("start_at = %v, want %v", out["start_at"], when)
	}
	if _, ok := out["due_date"]; ok {
		t.Fatal("due_date should have been remapped")
	}
}

func TestValidateEventRequiresStart(t *testing.T) {
	_, err := Validate(intent.ResEvent, intent.OpCreate, map[string]any{"title": "Kickoff"})
	var ve ValidationError
	if !errors.As(err, &ve) || ve.Field != "start_at" {
		t.Fatalf("err = %v, want start_at error", err)
	}
}
