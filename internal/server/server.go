package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gigline/internal/assistant"
	"gigline/internal/assistant/guard"
	"gigline/internal/assistant/schema"
	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Repo      repo.Repo
	App       *config.Config
	Assistant *assistant.Assistant
	BasePath  string
	Auth      AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"quota_exceeded"`
	Message string         `json:"message" example:"monthly action limit reached (5000/5000)"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Gigline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Gigline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDevAuth(group, cfg)
	registerMe(group, cfg)
	registerAssistant(group, cfg)
	registerTasks(group, cfg)
	registerClients(group, cfg)
	registerOrders(group, cfg)
	registerEvents(group, cfg)
	registerUsage(group, cfg)
	registerAudit(group, cfg)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ent guard.EntitlementDeniedError
	if errors.As(err, &ent) {
		return newAPIError(http.StatusForbidden, "entitlement_denied", err.Error(), map[string]any{
			"plan":     ent.Plan,
			"required": ent.Required,
		})
	}
	var quota guard.QuotaExceededError
	if errors.As(err, &quota) {
		return newAPIError(http.StatusTooManyRequests, "quota_exceeded", err.Error(), map[string]any{
			"used":      quota.Used,
			"limit":     quota.Limit,
			"remaining": quota.Remaining(),
		})
	}
	var perm guard.PermissionDeniedError
	if errors.As(err, &perm) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	}
	var ve schema.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{
			"field":  ve.Field,
			"reason": ve.Reason,
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusTooManyRequests:
		return "quota_exceeded"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func currentUser(ctx context.Context, cfg Config) (domain.User, huma.StatusError) {
	principal, authErr := requirePrincipal(ctx)
	if authErr != nil {
		return domain.User{}, authErr
	}
	u, err := cfg.Repo.GetUser(ctx, principal.UserID)
	if err != nil {
		return domain.User{}, newAPIError(http.StatusUnauthorized, "unauthorized", "unknown user", nil)
	}
	return u, nil
}

type listQuery struct {
	Status   string `query:"status"`
	ClientID string `query:"client_id"`
	Search   string `query:"search"`
	Limit    int    `query:"limit"`
}

func (q listQuery) filter() repo.ListFilter {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return repo.ListFilter{
		Status:   q.Status,
		ClientID: q.ClientID,
		Search:   q.Search,
		Limit:    limit,
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDevAuth(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		email := strings.TrimSpace(strings.ToLower(input.Body.Email))
		if email == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email is required", nil)
		}
		u, err := cfg.Repo.GetUserByEmail(ctx, email)
		if errors.Is(err, repo.ErrNotFound) {
			u = domain.User{
				ID:        uuid.New().String(),
				Email:     email,
				Name:      input.Body.Name,
				Role:      "member",
				Plan:      "free",
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			if input.Body.Role != "" {
				u.Role = input.Body.Role
			}
			if input.Body.Plan != "" {
				u.Plan = input.Body.Plan
			}
			if err := cfg.Repo.InsertUser(ctx, u); err != nil {
				return nil, handleError(err)
			}
		} else if err != nil {
			return nil, handleError(err)
		} else if input.Body.Plan != "" && input.Body.Plan != u.Plan {
			if err := cfg.Repo.UpdateUserPlan(ctx, u.ID, input.Body.Plan); err != nil {
				return nil, handleError(err)
			}
			u.Plan = input.Body.Plan
		}
		token, err := signToken(cfg.Auth.JWTSecret, u, time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func registerMe(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Plan: u.Plan}}, nil
	})
}

func registerAssistant(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "assistant-message",
		Method:      http.MethodPost,
		Path:        "/assistant/message",
		Summary:     "Send one message to the assistant",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, input *struct {
		Body AssistantMessageRequest `json:"body"`
	}) (*struct {
		Body assistant.Response `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		resp := cfg.Assistant.Handle(ctx, u, assistant.Request{
			Message: input.Body.Message,
			Pending: input.Body.Pending,
		})
		return &struct {
			Body assistant.Response `json:"body"`
		}{Body: resp}, nil
	})
}

func registerTasks(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := cfg.Repo.ListTasks(ctx, u.ID, input.filter())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		t, err := cfg.Repo.GetTask(ctx, u.ID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

func registerClients(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body []domain.Client `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := cfg.Repo.ListClients(ctx, u.ID, input.filter())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Client `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{client_id}",
		Summary:     "Get client",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ClientID string `path:"client_id"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		c, err := cfg.Repo.GetClient(ctx, u.ID, input.ClientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})
}

func registerOrders(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      http.MethodGet,
		Path:        "/orders",
		Summary:     "List orders",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body []domain.Order `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := cfg.Repo.ListOrders(ctx, u.ID, input.filter())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Order `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/orders/{order_id}",
		Summary:     "Get order",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*struct {
		Body domain.Order `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		o, err := cfg.Repo.GetOrder(ctx, u.ID, input.OrderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Order `json:"body"`
		}{Body: o}, nil
	})
}

func registerEvents(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List calendar events",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *listQuery) (*struct {
		Body []domain.CalendarEvent `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := cfg.Repo.ListEvents(ctx, u.ID, input.filter())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.CalendarEvent `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-event",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}",
		Summary:     "Get calendar event",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*struct {
		Body domain.CalendarEvent `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		e, err := cfg.Repo.GetEvent(ctx, u.ID, input.EventID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CalendarEvent `json:"body"`
		}{Body: e}, nil
	})
}

func registerUsage(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "usage",
		Method:      http.MethodGet,
		Path:        "/usage",
		Summary:     "Current month's assistant usage",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UsageResponse `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		now := time.Now().UTC()
		used, err := cfg.Repo.MonthlyUsage(ctx, u.ID, now)
		if err != nil {
			return nil, handleError(err)
		}
		byResource, err := cfg.Repo.MonthlyUsageByResource(ctx, u.ID, now)
		if err != nil {
			return nil, handleError(err)
		}
		limit := cfg.App.Plans[u.Plan].MonthlyActions
		remaining := limit - used
		if remaining < 0 {
			remaining = 0
		}
		return &struct {
			Body UsageResponse `json:"body"`
		}{Body: UsageResponse{
			Plan:       u.Plan,
			Used:       used,
			Limit:      limit,
			Remaining:  remaining,
			ByResource: byResource,
		}}, nil
	})
}

func registerAudit(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "Recent assistant actions",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body []domain.AuditEntry `json:"body"`
	}, error) {
		u, authErr := currentUser(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		if limit > 200 {
			limit = 200
		}
		entries, err := cfg.Repo.ListAudit(ctx, u.ID, limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AuditEntry `json:"body"`
		}{Body: entries}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	open := map[string]bool{
		path.Join("/", basePath, "health"):         true,
		path.Join("/", basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Gigline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}
