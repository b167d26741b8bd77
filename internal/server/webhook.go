package server

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"github.com/pathakanu/assistant/internal/assistant"
	"github.com/pathakanu/assistant/internal/twilio"
	"github.com/rs/zerolog"
	twilioclient "github.com/twilio/twilio-go/client"
)

const signatureHeader = "X-Twilio-Signature"

// signatureValidator checks Twilio request signatures.
type signatureValidator interface {
	Validate(url string, params map[string]string, expectedSignature string) bool
}

// CommandProcessor answers a command for a user.
type CommandProcessor interface {
	Process(ctx context.Context, user, command string) assistant.Result
}

// TwilioWebhook answers inbound WhatsApp messages with TwiML. Each sender's
// number is its assistant user id, so reminders set over WhatsApp come back
// over WhatsApp.
type TwilioWebhook struct {
	processor  CommandProcessor
	validator  signatureValidator
	webhookURL string
	logger     zerolog.Logger
}

// NewTwilioWebhook creates the webhook handler. When webhookURL is non-empty,
// requests must be signed with authToken for that URL.
func NewTwilioWebhook(processor CommandProcessor, authToken, webhookURL string, logger zerolog.Logger) *TwilioWebhook {
	wh := &TwilioWebhook{
		processor:  processor,
		webhookURL: webhookURL,
		logger:     logger.With().Str("component", "twilio-webhook").Logger(),
	}
	if webhookURL != "" && authToken != "" {
		v := twilioclient.NewRequestValidator(authToken)
		wh.validator = &v
	}
	return wh
}

func (t *TwilioWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		t.logger.Warn().Err(err).Msg("parse form")
		t.writeTwilioResponse(w, "Sorry, I couldn't understand that request.")
		return
	}

	if t.validator != nil && !t.validator.Validate(t.webhookURL, DecodeTwilioForm(r.PostForm), r.Header.Get(signatureHeader)) {
		t.logger.Warn().Str("from", r.PostForm.Get("From")).Msg("rejected request with invalid signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	from := r.PostForm.Get("From")
	body := strings.TrimSpace(r.PostForm.Get("Body"))
	if from == "" || body == "" {
		t.writeTwilioResponse(w, "I need a message to work with. Please try again.")
		return
	}

	user := twilio.SanitizeWhatsAppNumber(from)
	result := t.processor.Process(r.Context(), user, body)
	t.writeTwilioResponse(w, result.Response)
}

func (t *TwilioWebhook) writeTwilioResponse(w http.ResponseWriter, message string) {
	twiml := struct {
		XMLName xml.Name `xml:"Response"`
		Message string   `xml:"Message"`
	}{
		Message: message,
	}

	w.Header().Set("Content-Type", "application/xml")
	if err := xml.NewEncoder(w).Encode(twiml); err != nil {
		t.logger.Error().Err(err).Msg("twilio response encode")
	}
}

// DecodeTwilioForm flattens POST form data into the map Twilio signs.
func DecodeTwilioForm(values url.Values) map[string]string {
	result := make(map[string]string, len(values))
	for key, value := range values {
		if len(value) > 0 {
			result[key] = value[0]
		}
	}
	return result
}
