// Package notify delivers fired reminders to their owners.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/pathakanu/assistant/internal/reminder"
	"github.com/rs/zerolog"
)

// Message is the text announced for a reminder.
func Message(user, text string) string {
	return fmt.Sprintf("Reminder for %s: %s", user, text)
}

// Multi fans a reminder out to every primary notifier and, independently, to
// the secondary ones. Only primary failures are reported.
type Multi struct {
	Primary   []reminder.Notifier
	Secondary []reminder.Notifier
	logger    zerolog.Logger
}

// NewMulti returns a fan-out notifier. Nil notifiers are skipped.
func NewMulti(logger zerolog.Logger, primary ...reminder.Notifier) *Multi {
	m := &Multi{logger: logger.With().Str("component", "notify").Logger()}
	for _, n := range primary {
		if n != nil {
			m.Primary = append(m.Primary, n)
		}
	}
	return m
}

// WithSecondary adds best-effort notifiers whose outcome never affects delivery.
func (m *Multi) WithSecondary(notifiers ...reminder.Notifier) *Multi {
	for _, n := range notifiers {
		if n != nil {
			m.Secondary = append(m.Secondary, n)
		}
	}
	return m
}

// Notify implements reminder.Notifier.
func (m *Multi) Notify(ctx context.Context, user, text string) error {
	for _, n := range m.Secondary {
		go func(n reminder.Notifier) {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Warn().Interface("panic", r).Msg("secondary notifier failed")
				}
			}()
			if err := n.Notify(context.WithoutCancel(ctx), user, text); err != nil {
				m.logger.Debug().Err(err).Msg("secondary notifier failed")
			}
		}(n)
	}

	var errs []error
	for _, n := range m.Primary {
		if err := n.Notify(ctx, user, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Speaker reads reminders aloud with an external text-to-speech command.
type Speaker struct {
	command string
	path    string
	logger  zerolog.Logger
}

// NewSpeaker resolves command on PATH. When it is missing the speaker only logs.
func NewSpeaker(command string, logger zerolog.Logger) *Speaker {
	s := &Speaker{command: command, logger: logger.With().Str("component", "speech").Logger()}
	if command != "" {
		if path, err := exec.LookPath(command); err == nil {
			s.path = path
		} else {
			s.logger.Warn().Str("command", command).Msg("text-to-speech unavailable, reminders will only be logged")
		}
	}
	return s
}

// Available reports whether a speech command was found.
func (s *Speaker) Available() bool {
	return s.path != ""
}

// Notify speaks the reminder message.
func (s *Speaker) Notify(ctx context.Context, user, text string) error {
	message := Message(user, text)
	s.logger.Info().Str("user", user).Msg(message)
	if !s.Available() {
		return nil
	}
	if out, err := exec.CommandContext(ctx, s.path, message).CombinedOutput(); err != nil {
		return fmt.Errorf("speak with %s: %w: %s", s.command, err, out)
	}
	return nil
}

// Beeper rings the terminal bell on the host console.
type Beeper struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBeeper writes the bell character to w.
func NewBeeper(w io.Writer) *Beeper {
	return &Beeper{w: w}
}

// Notify rings the bell once.
func (b *Beeper) Notify(context.Context, string, string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := io.WriteString(b.w, "\a")
	return err
}
