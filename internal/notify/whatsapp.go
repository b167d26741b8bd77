package notify

import (
	"context"
	"fmt"

	"github.com/pathakanu/assistant/internal/twilio"
)

// PhoneResolver finds the WhatsApp number registered for a user.
type PhoneResolver interface {
	PhoneFor(ctx context.Context, username string) (string, error)
}

// Sender is the part of the Twilio client used for delivery.
type Sender interface {
	SendWhatsAppMessage(to, body string) error
}

// WhatsApp sends reminders over Twilio. Users created from inbound WhatsApp
// messages are their own phone numbers; others need a registered phone.
type WhatsApp struct {
	sender   Sender
	resolver PhoneResolver
}

// NewWhatsApp returns a WhatsApp notifier.
func NewWhatsApp(sender Sender, resolver PhoneResolver) *WhatsApp {
	return &WhatsApp{sender: sender, resolver: resolver}
}

// Notify implements reminder.Notifier. Users without a phone are skipped.
func (w *WhatsApp) Notify(ctx context.Context, user, text string) error {
	to := ""
	if twilio.LooksLikePhoneNumber(user) {
		to = twilio.SanitizeWhatsAppNumber(user)
	} else if w.resolver != nil {
		phone, err := w.resolver.PhoneFor(ctx, user)
		if err != nil {
			return fmt.Errorf("resolve phone for %s: %w", user, err)
		}
		to = phone
	}
	if to == "" {
		return nil
	}
	return w.sender.SendWhatsAppMessage(to, Message(user, text))
}
