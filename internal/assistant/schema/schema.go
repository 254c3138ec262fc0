// Package schema validates and normalizes intent parameters against
// per-resource field schemas before anything touches the store. Validation
// fails fast: the first failing field is reported and the rest are skipped,
// which keeps chat replies to a single actionable sentence.
package schema

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gigline/internal/assistant/intent"
)

// ValidationError reports the first field that failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Payload is the validated, normalized parameter set for one intent.
type Payload map[string]any

type fieldKind int

const (
	kindString fieldKind = iota
	kindEnum
	kindEmail
	kindNumber
	kindDate
	kindID
)

type field struct {
	Name     string
	Kind     fieldKind
	Required bool
	MaxLen   int
	Enum     []string
	Default  any
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
var idRe = regexp.MustCompile(`^[a-zA-Z0-9\-_]{1,64}$`)

var taskFields = []field{
	{Name: "title", Kind: kindString, Required: true, MaxLen: 200},
	{Name: "description", Kind: kindString, MaxLen: 2000},
	{Name: "status", Kind: kindEnum, Enum: []string{"pending", "in_progress", "completed", "cancelled"}, Default: "pending"},
	{Name: "priority", Kind: kindEnum, Enum: []string{"low", "medium", "high"}, Default: "medium"},
	{Name: "due_date", Kind: kindDate},
	{Name: "client_id", Kind: kindID},
}

var clientFields = []field{
	{Name: "name", Kind: kindString, Required: true, MaxLen: 120},
	{Name: "email", Kind: kindEmail, MaxLen: 254},
	{Name: "phone", Kind: kindString, MaxLen: 40},
	{Name: "company", Kind: kindString, MaxLen: 120},
	{Name: "notes", Kind: kindString, MaxLen: 2000},
}

var orderFields = []field{
	{Name: "title", Kind: kindString, Required: true, MaxLen: 200},
	{Name: "amount", Kind: kindNumber, Default: float64(0)},
	{Name: "currency", Kind: kindEnum, Enum: []string{"EUR", "USD"}, Default: "EUR"},
	{Name: "status", Kind: kindEnum, Enum: []string{"draft", "sent", "paid", "cancelled"}, Default: "draft"},
	{Name: "client_id", Kind: kindID},
}

var eventFields = []field{
	{Name: "title", Kind: kindString, Required: true, MaxLen: 200},
	{Name: "location", Kind: kindString, MaxLen: 200},
	{Name: "start_at", Kind: kindDate, Required: true},
	{Name: "end_at", Kind: kindDate},
	{Name: "client_id", Kind: kindID},
}

func fieldsFor(res intent.Resource) []field {
	switch res {
	case intent.ResClient:
		return clientFields
	case intent.ResOrder:
		return orderFields
	case intent.ResEvent:
		return eventFields
	default:
		return taskFields
	}
}

// Validate checks params for a resource+operation and returns the
// normalized payload. Create applies defaults for omitted optional fields;
// update and delete validate only the fields present.
func Validate(res intent.Resource, op intent.Operation, params map[string]any) (Payload, error) {
	out := Payload{}
	fields := fieldsFor(res)

	// The parser extracts calendar dates under due_date for every resource;
	// events carry them as start_at.
	if res == intent.ResEvent {
		if _, ok := params["start_at"]; !ok {
			if v, ok := params["due_date"]; ok {
				params = cloneParams(params)
				params["start_at"] = v
				delete(params, "due_date")
			}
		}
	}

	// Update and delete take an optional id: with one they target a single
	// row, without one they become a staged bulk operation over filters.
	// A malformed id is rejected either way.
	switch op {
	case intent.OpUpdate, intent.OpDelete:
		if _, ok := params["id"]; ok {
			id, err := requireID(params)
			if err != nil {
				return nil, err
			}
			out["id"] = id
		}
	}

	for _, f := range fields {
		v, present := params[f.Name]
		if !present {
			if op == intent.OpCreate {
				if f.Required {
					return nil, ValidationError{Field: f.Name, Reason: "is required"}
				}
				if f.Default != nil {
					out[f.Name] = f.Default
				}
			}
			continue
		}
		norm, err := checkField(f, v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = norm
	}

	// Pass filters through untouched for the filter-driven operations.
	switch op {
	case intent.OpList, intent.OpRead:
		for _, k := range []string{"id", "search", "count"} {
			if v, ok := params[k]; ok {
				out[k] = v
			}
		}
	case intent.OpUpdate, intent.OpDelete:
		for _, k := range []string{"search", "count"} {
			if v, ok := params[k]; ok {
				out[k] = v
			}
		}
	}
	return out, nil
}

func requireID(params map[string]any) (string, error) {
	v, ok := params["id"]
	if !ok {
		return "", ValidationError{Field: "id", Reason: "is required"}
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", ValidationError{Field: "id", Reason: "is required"}
	}
	s = strings.TrimSpace(s)
	if !idRe.MatchString(s) {
		return "", ValidationError{Field: "id", Reason: "is not a well-formed identifier"}
	}
	return s, nil
}

func checkField(f field, v any) (any, error) {
	switch f.Kind {
	case kindString:
		s, ok := v.(string)
		if !ok {
			return nil, ValidationError{Field: f.Name, Reason: "must be text"}
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, ValidationError{Field: f.Name, Reason: "must not be empty"}
		}
		if f.MaxLen > 0 && len(s) > f.MaxLen {
			return nil, ValidationError{Field: f.Name, Reason: fmt.Sprintf("must be at most %d characters", f.MaxLen)}
		}
		return s, nil
	case kindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, ValidationError{Field: f.Name, Reason: "must be text"}
		}
		s = strings.TrimSpace(s)
		for _, allowed := range f.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, ValidationError{Field: f.Name, Reason: fmt.Sprintf("must be one of %s", strings.Join(f.Enum, ", "))}
	case kindEmail:
		s, ok := v.(string)
		if !ok {
			return nil, ValidationError{Field: f.Name, Reason: "must be text"}
		}
		s = strings.TrimSpace(s)
		if !emailRe.MatchString(s) {
			return nil, ValidationError{Field: f.Name, Reason: "must be a valid email address"}
		}
		return s, nil
	case kindNumber:
		switch n := v.(type) {
		case float64:
			if n < 0 {
				return nil, ValidationError{Field: f.Name, Reason: "must not be negative"}
			}
			return n, nil
		case int:
			if n < 0 {
				return nil, ValidationError{Field: f.Name, Reason: "must not be negative"}
			}
			return float64(n), nil
		default:
			return nil, ValidationError{Field: f.Name, Reason: "must be a number"}
		}
	case kindDate:
		switch d := v.(type) {
		case time.Time:
			return d, nil
		case string:
			parsed, err := time.Parse(time.RFC3339, d)
			if err != nil {
				return nil, ValidationError{Field: f.Name, Reason: "must be an RFC3339 timestamp"}
			}
			return parsed, nil
		default:
			return nil, ValidationError{Field: f.Name, Reason: "must be a date"}
		}
	case kindID:
		s, ok := v.(string)
		if !ok || !idRe.MatchString(strings.TrimSpace(s)) {
			return nil, ValidationError{Field: f.Name, Reason: "is not a well-formed identifier"}
		}
		return strings.TrimSpace(s), nil
	}
	return v, nil
}

func cloneParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
