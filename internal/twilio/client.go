package twilio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrNotConfigured is returned when sending without credentials or a sender number.
var ErrNotConfigured = errors.New("twilio client not configured")

type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Client wraps Twilio messaging operations used for WhatsApp delivery.
type Client struct {
	api          messageAPI
	fromWhatsApp string
	logger       zerolog.Logger
}

// New creates a Twilio client bound to the configured WhatsApp sender number.
func New(accountSID, authToken, fromWhatsApp string, logger zerolog.Logger) *Client {
	c := &Client{
		fromWhatsApp: fromWhatsApp,
		logger:       logger.With().Str("component", "twilio").Logger(),
	}
	if accountSID != "" && authToken != "" {
		c.api = twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken}).Api
	}
	return c
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio's API.
func (c *Client) SendWhatsAppMessage(to, body string) error {
	if c == nil || c.api == nil {
		return ErrNotConfigured
	}

	sender := NormalizeWhatsAppAddress(c.fromWhatsApp)
	if sender == "" {
		return fmt.Errorf("%w: sender WhatsApp number is empty", ErrNotConfigured)
	}

	recipient := NormalizeWhatsAppAddress(to)
	if recipient == "" {
		return fmt.Errorf("recipient number missing or invalid")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(sender)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send message error: %w", err)
	}

	event := c.logger.Info().Str("to", recipient)
	if resp != nil && resp.Sid != nil {
		event = event.Str("sid", *resp.Sid)
	}
	event.Msg("whatsapp message sent")
	return nil
}

// NormalizeWhatsAppAddress returns number in Twilio's "whatsapp:+<digits>" form.
func NormalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}

// SanitizeWhatsAppNumber strips the channel prefix Twilio puts on inbound senders.
func SanitizeWhatsAppNumber(from string) string {
	return strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:")
}

// LooksLikePhoneNumber reports whether s is an E.164-style number, optionally with the whatsapp: prefix.
func LooksLikePhoneNumber(s string) bool {
	s = strings.TrimPrefix(SanitizeWhatsAppNumber(s), "+")
	if len(s) < 7 || len(s) > 15 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
