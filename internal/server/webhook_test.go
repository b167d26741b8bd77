package server

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/pathakanu/assistant/internal/assistant"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoProcessor struct {
	user, command string
}

func (e *echoProcessor) Process(_ context.Context, user, command string) assistant.Result {
	e.user, e.command = user, command
	return assistant.Result{Response: "echo: " + command}
}

type stubValidator bool

func (s stubValidator) Validate(string, map[string]string, string) bool { return bool(s) }

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func twimlMessage(t *testing.T, body string) string {
	t.Helper()
	var out struct {
		Message string `xml:"Message"`
	}
	require.NoError(t, xml.Unmarshal([]byte(body), &out))
	return out.Message
}

func TestTwilioWebhookProcessesMessage(t *testing.T) {
	t.Parallel()
	proc := &echoProcessor{}
	wh := NewTwilioWebhook(proc, "", "", zerolog.Nop())

	rec := postForm(t, wh, url.Values{"From": {"whatsapp:+14155550100"}, "Body": {" weather in pune "}})
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "echo: weather in pune", twimlMessage(t, rec.Body.String()))
	assert.Equal(t, "+14155550100", proc.user)
}

func TestTwilioWebhookRequiresBody(t *testing.T) {
	t.Parallel()
	wh := NewTwilioWebhook(&echoProcessor{}, "", "", zerolog.Nop())

	rec := postForm(t, wh, url.Values{"From": {"whatsapp:+14155550100"}})
	assert.Equal(t, "I need a message to work with. Please try again.", twimlMessage(t, rec.Body.String()))
}

func TestTwilioWebhookSignature(t *testing.T) {
	t.Parallel()
	proc := &echoProcessor{}
	wh := NewTwilioWebhook(proc, "token", "https://example.com/twilio/webhook", zerolog.Nop())
	require.NotNil(t, wh.validator)

	wh.validator = stubValidator(false)
	rec := postForm(t, wh, url.Values{"From": {"whatsapp:+14155550100"}, "Body": {"hi"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, proc.command)

	wh.validator = stubValidator(true)
	rec = postForm(t, wh, url.Values{"From": {"whatsapp:+14155550100"}, "Body": {"hi"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", proc.command)
}

func TestDecodeTwilioForm(t *testing.T) {
	t.Parallel()
	got := DecodeTwilioForm(url.Values{"Body": {"first", "second"}, "Empty": {}})
	assert.Equal(t, map[string]string{"Body": "first"}, got)
}
