package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client wraps the OpenAI SDK for intent classification.
type Client struct {
	apiKey string
	client *openai.Client
	model  openai.ChatModel
}

// ErrClientNotInitialised is returned when attempting to call the API without a configured client.
var ErrClientNotInitialised = errors.New("openai client not initialised")

// Intent represents the high-level action inferred from a command.
type Intent string

const (
	// IntentUnknown indicates the command intent could not be resolved.
	IntentUnknown Intent = "unknown"
	// IntentTime asks for the current time.
	IntentTime Intent = "time"
	// IntentGreeting is small talk such as "good morning".
	IntentGreeting Intent = "greeting"
	// IntentHelp asks for usage guidance.
	IntentHelp Intent = "help"
)

var labels = []Intent{IntentTime, IntentGreeting, IntentHelp, IntentUnknown}

// New returns a client. Without an apiKey the client is inert and every call
// returns ErrClientNotInitialised.
func New(apiKey string, opts ...option.RequestOption) *Client {
	if apiKey == "" {
		return &Client{}
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &Client{
		apiKey: apiKey,
		client: &client,
		model:  openai.ChatModelGPT4oMini,
	}
}

// Enabled reports whether an API key was configured.
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// ClassifyIntent uses the language model to map a command the keyword matcher
// could not place onto one of the argument-free intents.
func (c *Client) ClassifyIntent(ctx context.Context, content string) (Intent, error) {
	if strings.TrimSpace(content) == "" {
		return IntentUnknown, fmt.Errorf("content cannot be empty")
	}
	if !c.Enabled() {
		return IntentUnknown, ErrClientNotInitialised
	}

	names := make([]string, len(labels))
	for i, label := range labels {
		names[i] = string(label)
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("Classify the user's request for a voice assistant. Reply with exactly one label: " + strings.Join(names, ", ") + "."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(content),
					},
				},
			},
		},
		Temperature:         openai.Float(0.0),
		MaxCompletionTokens: openai.Int(8),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return IntentUnknown, err
	}
	if len(resp.Choices) == 0 {
		return IntentUnknown, fmt.Errorf("no completion received")
	}

	return ParseIntent(resp.Choices[0].Message.Content), nil
}

// ParseIntent maps a model reply onto a known intent.
func ParseIntent(label string) Intent {
	label = strings.ToLower(strings.Trim(strings.TrimSpace(label), ".\"'"))
	for _, known := range labels {
		if Intent(label) == known {
			return known
		}
	}
	return IntentUnknown
}
