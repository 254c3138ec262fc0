package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"gigline/internal/assistant"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/migrate"
	"gigline/internal/repo"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Repo   repo.Repo
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	appCfg := config.Default()
	r := repo.Repo{DB: conn}
	handler, err := New(Config{
		Repo:      r,
		App:       appCfg,
		Assistant: assistant.New(r, appCfg, nil),
		BasePath:  "/v0",
		Auth:      AuthConfig{JWTSecret: testJWTSecret},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Repo:   r,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func devLogin(t *testing.T, srv *testServer, email, plan string) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"email": email,
		"plan":  plan,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var body DevLoginResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + body.Token}
}

func TestHealthIsOpen(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestAssistantCreateTaskOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := devLogin(t, srv, "studio@example.com", "studio")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/assistant/message", map[string]any{
		"message": `Create a task "Send invoice" for tomorrow`,
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assistant status %d: %s", res.StatusCode, string(data))
	}
	var body assistant.Response
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !body.Success {
		t.Fatalf("assistant reply: %s", body.Text)
	}

	listRes, listData := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, headers)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", listRes.StatusCode, string(listData))
	}
	var tasks []domain.Task
	if err := json.Unmarshal(listData, &tasks); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Send invoice" {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestAssistantConfirmationRoundtripOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := devLogin(t, srv, "studio@example.com", "studio")

	for _, msg := range []string{`Create a task "a"`, `Create a task "b"`} {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/assistant/message", map[string]any{"message": msg}, headers)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("seed status %d: %s", res.StatusCode, string(data))
		}
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/assistant/message", map[string]any{
		"message": "delete all my tasks",
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
	var staged assistant.Response
	if err := json.Unmarshal(data, &staged); err != nil {
		t.Fatalf("unmarshal staged: %v", err)
	}
	if !staged.RequiresConfirmation || staged.Pending == nil {
		t.Fatalf("expected confirmation prompt, got %+v", staged)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/assistant/message", map[string]any{
		"message": "yes",
		"pending": staged.Pending,
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirm status %d: %s", res.StatusCode, string(data))
	}
	var confirmed assistant.Response
	if err := json.Unmarshal(data, &confirmed); err != nil {
		t.Fatalf("unmarshal confirmed: %v", err)
	}
	if !confirmed.Success {
		t.Fatalf("confirm reply: %s", confirmed.Text)
	}

	_, listData := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, headers)
	var tasks []domain.Task
	if err := json.Unmarshal(listData, &tasks); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("tasks should be gone, got %+v", tasks)
	}
}

func TestAssistantEntitlementOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := devLogin(t, srv, "free@example.com", "free")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/assistant/message", map[string]any{
		"message": "list my tasks",
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assistant status %d: %s", res.StatusCode, string(data))
	}
	var body assistant.Response
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Success {
		t.Fatal("free plan should not be entitled")
	}
}

func TestUsageEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := devLogin(t, srv, "studio@example.com", "studio")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/assistant/message", map[string]any{
		"message": `Create a task "One"`,
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assistant status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/usage", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("usage status %d: %s", res.StatusCode, string(data))
	}
	var usage UsageResponse
	if err := json.Unmarshal(data, &usage); err != nil {
		t.Fatalf("unmarshal usage: %v", err)
	}
	if usage.Used != 1 || usage.Limit != 5000 || usage.Remaining != 4999 {
		t.Fatalf("usage = %+v", usage)
	}
}

func TestAuditEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := devLogin(t, srv, "studio@example.com", "studio")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/assistant/message", map[string]any{
		"message": `Create a task "One"`,
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assistant status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/audit", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("audit status %d: %s", res.StatusCode, string(data))
	}
	var entries []domain.AuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Summary != "create task" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestMeEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	headers := devLogin(t, srv, "pro@example.com", "pro")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me MeResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.Email != "pro@example.com" || me.Plan != "pro" {
		t.Fatalf("me = %+v", me)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	u := domain.User{ID: "u1", Email: "old@example.com", Role: "member", Plan: "studio",
		CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	if err := srv.Repo.InsertUser(context.Background(), u); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	token, err := signToken(testJWTSecret, u, time.Now().Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
}
