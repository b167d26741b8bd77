package assistant

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/pathakanu/assistant/internal/model"
	myopenai "github.com/pathakanu/assistant/internal/openai"
	"github.com/pathakanu/assistant/internal/reminder"
	"github.com/pathakanu/assistant/internal/weather"
	"github.com/pathakanu/assistant/internal/wikipedia"
	"github.com/rs/zerolog"
)

const (
	suggestionCount    = 3
	defaultHistorySize = 5
)

// Reminders is the part of the reminder service the assistant drives.
type Reminders interface {
	Set(user, text, timeText string) (reminder.Reminder, error)
	CancelMatching(fragment string) (reminder.Reminder, bool)
}

// WeatherProvider reports current conditions for a city.
type WeatherProvider interface {
	Current(ctx context.Context, city string) (weather.Report, error)
}

// Encyclopedia looks up topic summaries.
type Encyclopedia interface {
	Lookup(ctx context.Context, topic string) (wikipedia.Result, error)
}

// Translator translates English text into a named language.
type Translator interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

// IntentClassifier guesses the intent of commands no keyword matched.
type IntentClassifier interface {
	Enabled() bool
	ClassifyIntent(ctx context.Context, content string) (myopenai.Intent, error)
}

// Deps wires the assistant to its collaborators. Nil providers disable the
// matching feature.
type Deps struct {
	Reminders   Reminders
	Weather     WeatherProvider
	Wikipedia   Encyclopedia
	Translator  Translator
	Classifier  IntentClassifier
	Tips        []string
	Languages   map[string]string
	HistorySize int
	Location    *time.Location
	Clock       func() time.Time
	Logger      zerolog.Logger
}

// Result is the reply to one command.
type Result struct {
	Response    string               `json:"response"`
	History     []model.HistoryEntry `json:"history"`
	Suggestions []string             `json:"suggestions"`
}

// Assistant routes natural-language commands to the feature that answers them.
type Assistant struct {
	reminders  Reminders
	weather    WeatherProvider
	wikipedia  Encyclopedia
	translator Translator
	classifier IntentClassifier
	tips       []string
	languages  []string
	history    *historyStore
	loc        *time.Location
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates an Assistant.
func New(deps Deps) *Assistant {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().In(loc) }
	}
	size := deps.HistorySize
	if size <= 0 {
		size = defaultHistorySize
	}

	languages := make([]string, 0, len(deps.Languages))
	for name := range deps.Languages {
		languages = append(languages, name)
	}
	sort.Strings(languages)

	return &Assistant{
		reminders:  deps.Reminders,
		weather:    deps.Weather,
		wikipedia:  deps.Wikipedia,
		translator: deps.Translator,
		classifier: deps.Classifier,
		tips:       deps.Tips,
		languages:  languages,
		history:    newHistoryStore(size),
		loc:        loc,
		now:        now,
		logger:     deps.Logger.With().Str("component", "assistant").Logger(),
	}
}

// Location returns the fixed zone used for times.
func (a *Assistant) Location() *time.Location {
	return a.loc
}

// Process answers command on behalf of user.
func (a *Assistant) Process(ctx context.Context, user, command string) Result {
	command = strings.ToLower(strings.TrimSpace(command))
	a.logger.Info().Str("user", user).Str("command", command).Msg("processing command")

	a.history.Add(user, model.HistoryEntry{
		Command:   command,
		Timestamp: a.now().Format("15:04:05"),
	})

	return Result{
		Response:    a.respond(ctx, user, command),
		History:     a.history.Recent(user),
		Suggestions: a.Suggestions(),
	}
}

// History returns the recent commands of user.
func (a *Assistant) History(user string) []model.HistoryEntry {
	return a.history.Recent(user)
}

func (a *Assistant) respond(ctx context.Context, user, command string) string {
	intent := detectIntent(command)
	if intent == intentUnknown {
		intent = a.classify(ctx, command)
	}

	switch intent {
	case intentCancelReminder:
		return a.cancelReminder(command)
	case intentSetReminder:
		return a.setReminder(user, command)
	case intentWeather:
		return a.currentWeather(ctx, command)
	case intentWikipedia:
		return a.searchWikipedia(ctx, command)
	case intentTime:
		return a.CurrentTime()
	case intentCalculate:
		return calculate(extractExpression(command))
	case intentTranslate:
		return a.translate(ctx, command)
	case intentGreeting:
		return greetingResponse
	case intentHelp:
		return a.helpResponse()
	default:
		return unknownResponse
	}
}

func (a *Assistant) classify(ctx context.Context, command string) intent {
	if a.classifier == nil || !a.classifier.Enabled() {
		return intentUnknown
	}
	label, err := a.classifier.ClassifyIntent(ctx, command)
	if err != nil {
		if !errors.Is(err, myopenai.ErrClientNotInitialised) {
			a.logger.Warn().Err(err).Msg("intent classification failed")
		}
		return intentUnknown
	}
	switch label {
	case myopenai.IntentTime:
		return intentTime
	case myopenai.IntentGreeting:
		return intentGreeting
	case myopenai.IntentHelp:
		return intentHelp
	default:
		return intentUnknown
	}
}

func (a *Assistant) setReminder(user, command string) string {
	if a.reminders == nil {
		return unknownResponse
	}
	text, timeText, ok := parseSetReminder(command)
	if !ok {
		return "Please specify reminder text and time. Example: 'remind me to call mom at 15:30'"
	}
	rem, err := a.reminders.Set(user, text, timeText)
	if err != nil {
		if !errors.Is(err, reminder.ErrInvalidTimeFormat) {
			a.logger.Error().Err(err).Msg("set reminder")
		}
		return "Sorry, I couldn't set that reminder. Please use a valid time format (e.g., " + reminder.ExampleFormats + ")"
	}
	return fmt.Sprintf("Reminder set for %s: %s", rem.Target.Format("03:04 PM"), rem.Text)
}

func (a *Assistant) cancelReminder(command string) string {
	if a.reminders == nil {
		return unknownResponse
	}
	fragment := parseCancelReminder(command)
	if fragment == "" {
		return "Please specify which reminder to cancel"
	}
	rem, ok := a.reminders.CancelMatching(fragment)
	if !ok {
		return "No matching reminder found to cancel"
	}
	return "Cancelled reminder: " + rem.Text
}

func (a *Assistant) currentWeather(ctx context.Context, command string) string {
	city := extractCity(command)
	if city == "" {
		return "Please specify a city name. For example: 'weather in London'"
	}
	if a.weather == nil {
		return "Sorry, I couldn't fetch the weather data"
	}
	report, err := a.weather.Current(ctx, city)
	switch {
	case errors.Is(err, weather.ErrCityNotFound):
		return "Sorry, I couldn't find weather data for " + city
	case err != nil:
		a.logger.Error().Err(err).Str("city", city).Msg("fetch weather")
		return "Sorry, I couldn't fetch the weather data"
	}
	return report.String()
}

func (a *Assistant) searchWikipedia(ctx context.Context, command string) string {
	topic := extractTopic(command)
	if topic == "" {
		return "Please specify a topic to search. For example: 'search wikipedia for AI' or 'who is Albert Einstein'"
	}
	if a.wikipedia == nil {
		return fmt.Sprintf("Sorry, I encountered an error while searching for '%s'. Please try again.", topic)
	}
	res, err := a.wikipedia.Lookup(ctx, topic)
	if err != nil {
		a.logger.Error().Err(err).Str("topic", topic).Msg("search wikipedia")
		return fmt.Sprintf("Sorry, I encountered an error while searching for '%s'. Please try again.", topic)
	}

	switch res.Kind {
	case wikipedia.KindArticle:
		if res.Resolved {
			return fmt.Sprintf("I found this related information about %s:\n\n%s\n\nRead more: %s", res.Title, res.Summary, res.URL)
		}
		return fmt.Sprintf("Here's what I found about %s:\n\n%s\n\nRead more: %s", topic, res.Summary, res.URL)
	case wikipedia.KindDisambiguation:
		return fmt.Sprintf("There are multiple topics matching '%s'. Here are the most relevant ones:\n%s\n\nPlease be more specific about which topic you're interested in.",
			topic, strings.Join(res.Options, ", "))
	case wikipedia.KindRelated:
		return fmt.Sprintf("I found these related topics: %s\nPlease specify which one you'd like to know more about.", strings.Join(res.Options, ", "))
	default:
		return fmt.Sprintf("Sorry, I couldn't find any information about '%s'. Please try a different search term.", topic)
	}
}

// CurrentTime formats the current time in the assistant's zone.
func (a *Assistant) CurrentTime() string {
	return a.now().Format("03:04:05 PM")
}

func (a *Assistant) translate(ctx context.Context, command string) string {
	text, lang, ok := parseTranslate(command)
	if !ok {
		return "Please specify text and target language. Example: 'translate hello to hindi'\nSupported languages: " + strings.Join(a.languages, ", ")
	}
	if a.translator == nil {
		return "Sorry, I couldn't translate that text"
	}
	out, err := a.translator.Translate(ctx, text, lang)
	if err != nil {
		a.logger.Error().Err(err).Str("lang", lang).Msg("translate")
		return "Sorry, I couldn't translate that text"
	}
	return "Translation: " + out
}

func (a *Assistant) helpResponse() string {
	return "I can help you with:\n" +
		"- Weather information\n" +
		"- Wikipedia searches (try: 'who is Albert Einstein' or 'what is AI')\n" +
		"- Current time\n" +
		"- Mathematical calculations\n" +
		"- Text translation (supported languages: " + strings.Join(a.languages, ", ") + ")\n" +
		"- Setting reminders\n" +
		"Just ask me about any of these!"
}

// Suggestions returns up to three distinct random tips.
func (a *Assistant) Suggestions() []string {
	n := suggestionCount
	if len(a.tips) < n {
		n = len(a.tips)
	}
	out := make([]string, 0, n)
	for _, i := range rand.Perm(len(a.tips))[:n] {
		out = append(out, a.tips[i])
	}
	return out
}

// RandomTip returns one tip, or "" when none are configured.
func (a *Assistant) RandomTip() string {
	if len(a.tips) == 0 {
		return ""
	}
	return a.tips[rand.Intn(len(a.tips))]
}

const (
	greetingResponse = "Hello! I'm your AI assistant. I can help you with weather, calculations, translations, and more. How can I assist you today?"
	unknownResponse  = "I'm not sure how to help with that. Try asking about weather, calculations, or say 'help' for more options."
)
