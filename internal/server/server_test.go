package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pathakanu/assistant/internal/assistant"
	"github.com/pathakanu/assistant/internal/auth"
	"github.com/pathakanu/assistant/internal/database"
	"github.com/pathakanu/assistant/internal/reminder"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type speechStub bool

func (s speechStub) Available() bool { return bool(s) }

type testEnv struct {
	server    *httptest.Server
	reminders *reminder.Service
	hub       *Hub
	tokens    *auth.Tokens
	users     *auth.Users
	clock     func() time.Time
}

var noon = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, debug bool) *testEnv {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "assistant.html"), []byte("<html>assistant</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0o644))

	clock := func() time.Time { return noon }
	tokens := auth.NewTokens("test-secret")
	users := auth.NewUsers(db)
	hub := NewHub(tokens, zerolog.Nop())
	reminders := reminder.NewService(reminder.NewStore(), hub, time.UTC, zerolog.Nop(), reminder.WithClock(clock))
	t.Cleanup(reminders.Close)

	a := assistant.New(assistant.Deps{
		Reminders: reminders,
		Tips:      []string{"a", "b", "c", "d"},
		Languages: map[string]string{"hindi": "hi"},
		Location:  time.UTC,
		Clock:     clock,
		Logger:    zerolog.Nop(),
	})

	s := New(Deps{
		Assistant:         a,
		Users:             users,
		Tokens:            tokens,
		Reminders:         reminders,
		Hub:               hub,
		DB:                db,
		Speech:            speechStub(true),
		Webhook:           NewTwilioWebhook(a, "", "", zerolog.Nop()),
		StaticDir:         static,
		TimezoneName:      "UTC",
		EnableDebugRoutes: debug,
		Logger:            zerolog.Nop(),
	})
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	return &testEnv{server: srv, reminders: reminders, hub: hub, tokens: tokens, users: users, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	resp, _ := e.do(t, http.MethodPost, "/api/register", "", map[string]string{"username": username, "password": "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body := e.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": username, "password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["token"].(string)
}

func TestProcessCommand(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodPost, "/api/process_command", "", map[string]string{"command": "Remind me to stretch at 13:00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Reminder set for 01:00 PM: stretch", body["response"])
	assert.Len(t, body["history"], 1)
	assert.Len(t, body["suggestions"], 3)
	assert.Len(t, env.reminders.Pending(anonymousUser), 1)

	resp, body = env.do(t, http.MethodPost, "/api/process_command", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No command provided", body["error"])
}

func TestProcessCommandUsesTokenUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	token := env.login(t, "alice")

	resp, _ := env.do(t, http.MethodPost, "/api/process_command", token, map[string]string{"command": "remind me to call mom at 15:30"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/reminders", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["reminders"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "alice_20240501_1530", list[0].(map[string]any)["id"])
	assert.Empty(t, env.reminders.Pending(anonymousUser))
}

func TestAuthRoutes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodPost, "/api/register", "", map[string]string{"username": "bob", "password": "pw", "email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "User registered successfully", body["message"])

	resp, body = env.do(t, http.MethodPost, "/api/register", "", map[string]string{"username": "bob", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Username already exists", body["error"])

	resp, body = env.do(t, http.MethodPost, "/api/register", "", map[string]string{"username": "carol", "password": "pw", "email": "bob@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email already exists", body["error"])

	resp, body = env.do(t, http.MethodPost, "/api/register", "", map[string]string{"username": "dave"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Username and password are required", body["error"])

	resp, body = env.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "bob", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid username or password", body["error"])

	resp, body = env.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "bob", "password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["token"].(string)

	resp, body = env.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bob", body["username"])
	assert.Equal(t, "bob@example.com", body["email"])

	resp, body = env.do(t, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["users"], 1)

	resp, body = env.do(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token is missing!", body["message"])
}

func TestInfoRoutes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	resp, body := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["speech_recognition"])
	assert.Equal(t, true, body["text_to_speech"])
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	_, body = env.do(t, http.MethodGet, "/api/get_time", "", nil)
	assert.Equal(t, "12:00:00 PM", body["time"])
	assert.Equal(t, "UTC", body["timezone"])

	_, body = env.do(t, http.MethodGet, "/api/get_tip", "", nil)
	assert.Contains(t, []any{"a", "b", "c", "d"}, body["tip"])
}

func TestDebugRouteIsGated(t *testing.T) {
	t.Parallel()

	resp, _ := newTestEnv(t, false).do(t, http.MethodGet, "/api/debug/db-structure", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := newTestEnv(t, true).do(t, http.MethodGet, "/api/debug/db-structure", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "users")
}

func TestStaticFilesAndCORS(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	resp, err := http.Get(env.server.URL + "/")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "<html>assistant</html>", buf.String())
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(env.server.URL + "/app.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/process_command", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestWebSocketReceivesReminder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	token, err := env.tokens.Issue("alice")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.Connections("alice") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, env.hub.Notify(context.Background(), "alice", "call mom"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev struct {
		Type    string          `json:"type"`
		Payload ReminderPayload `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "reminder", ev.Type)
	assert.Equal(t, "Reminder for alice: call mom", ev.Payload.Message)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.server.URL, "http")+"/api/ws", nil)
	require.Error(t, err)
}
