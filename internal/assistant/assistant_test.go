package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	myopenai "github.com/pathakanu/assistant/internal/openai"
	"github.com/pathakanu/assistant/internal/reminder"
	"github.com/pathakanu/assistant/internal/weather"
	"github.com/pathakanu/assistant/internal/wikipedia"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var afternoon = time.Date(2024, 5, 1, 14, 0, 5, 0, time.UTC)

type delivered struct {
	user, text string
}

type recorder struct {
	mu  sync.Mutex
	got []delivered
}

func (r *recorder) Notify(_ context.Context, user, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, delivered{user, text})
	return nil
}

func (r *recorder) all() []delivered {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivered(nil), r.got...)
}

type fakeWeather struct{}

func (fakeWeather) Current(_ context.Context, city string) (weather.Report, error) {
	switch city {
	case "london":
		return weather.Report{City: city, Temperature: 12.5, Description: "light rain", Humidity: 81, WindSpeed: 4.1}, nil
	case "atlantis":
		return weather.Report{}, weather.ErrCityNotFound
	default:
		return weather.Report{}, errors.New("timeout")
	}
}

type fakeWiki map[string]wikipedia.Result

func (f fakeWiki) Lookup(_ context.Context, topic string) (wikipedia.Result, error) {
	if res, ok := f[topic]; ok {
		return res, nil
	}
	return wikipedia.Result{}, errors.New("offline")
}

type fakeTranslator struct{}

func (fakeTranslator) Translate(_ context.Context, text, lang string) (string, error) {
	if lang != "french" {
		return "", errors.New("unsupported")
	}
	return "[fr] " + text, nil
}

type fakeClassifier struct {
	intent myopenai.Intent
	calls  int
}

func (f *fakeClassifier) Enabled() bool { return true }

func (f *fakeClassifier) ClassifyIntent(context.Context, string) (myopenai.Intent, error) {
	f.calls++
	return f.intent, nil
}

type fixture struct {
	assistant *Assistant
	reminders *reminder.Service
	notified  *recorder
	mu        sync.Mutex
	now       time.Time
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T, classifier IntentClassifier) *fixture {
	t.Helper()
	f := &fixture{notified: &recorder{}, now: afternoon}
	f.reminders = reminder.NewService(reminder.NewStore(), f.notified, time.UTC, zerolog.Nop(),
		reminder.WithClock(f.clock),
		reminder.WithPollInterval(2*time.Millisecond),
	)
	t.Cleanup(f.reminders.Close)

	f.assistant = New(Deps{
		Reminders:  f.reminders,
		Weather:    fakeWeather{},
		Translator: fakeTranslator{},
		Classifier: classifier,
		Wikipedia: fakeWiki{
			"alan turing": {Kind: wikipedia.KindArticle, Title: "Alan Turing", Summary: "A mathematician.", URL: "https://w/Alan_Turing"},
			"mercury":     {Kind: wikipedia.KindDisambiguation, Options: []string{"Mercury (planet)", "Mercury (element)"}},
			"pythn":       {Kind: wikipedia.KindArticle, Title: "Python", Summary: "A language.", URL: "https://w/Python", Resolved: true},
			"zzz":         {Kind: wikipedia.KindNotFound},
		},
		Tips:        []string{"tip one", "tip two", "tip three", "tip four"},
		Languages:   map[string]string{"hindi": "hi", "french": "fr"},
		HistorySize: 3,
		Location:    time.UTC,
		Clock:       f.clock,
		Logger:      zerolog.Nop(),
	})
	return f
}

func (f *fixture) say(command string) string {
	return f.assistant.Process(context.Background(), "alice", command).Response
}

func TestSetReminderFiresThroughNotifier(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	assert.Equal(t, "Reminder set for 03:30 PM: call mom", f.say("Remind me to call mom at 15:30"))
	assert.Empty(t, f.notified.all())

	f.advance(90 * time.Minute)
	require.Eventually(t, func() bool { return len(f.notified.all()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, delivered{"alice", "call mom"}, f.notified.all()[0])
}

func TestSetReminderPhrasing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	assert.Equal(t, "Reminder set for 09:15 AM: look at the sky", f.say("set reminder look at the sky at 9:15 am"))
	assert.Equal(t, "Please specify reminder text and time. Example: 'remind me to call mom at 15:30'", f.say("remind me to call mom"))
	assert.Equal(t, "Sorry, I couldn't set that reminder. Please use a valid time format (e.g., '2:30 PM' or '14:30')", f.say("remind me to call mom at noon"))
}

func TestCancelReminder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	f.say("remind me to water plants at 18:00")
	assert.Equal(t, "Cancelled reminder: water plants", f.say("cancel reminder water"))
	assert.Equal(t, "No matching reminder found to cancel", f.say("cancel reminder water"))
	assert.Equal(t, "Please specify which reminder to cancel", f.say("cancel reminder"))
	assert.Empty(t, f.reminders.Pending("alice"))
}

func TestWeather(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	assert.Equal(t, "Temperature in london is 12.5°C with light rain. Humidity: 81%, Wind Speed: 4.1 m/s", f.say("weather in London"))
	assert.Equal(t, "Sorry, I couldn't find weather data for atlantis", f.say("temperature in atlantis"))
	assert.Equal(t, "Sorry, I couldn't fetch the weather data", f.say("forecast for paris"))
	assert.Equal(t, "Please specify a city name. For example: 'weather in London'", f.say("weather"))
}

func TestWikipedia(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	assert.Equal(t, "Here's what I found about alan turing:\n\nA mathematician.\n\nRead more: https://w/Alan_Turing", f.say("who is Alan Turing?"))
	assert.Contains(t, f.say("search wikipedia for mercury"), "Mercury (planet), Mercury (element)")
	assert.Contains(t, f.say("look up pythn"), "I found this related information about Python:")
	assert.Equal(t, "Sorry, I couldn't find any information about 'zzz'. Please try a different search term.", f.say("what is zzz"))
	assert.Contains(t, f.say("what is offline"), "Sorry, I encountered an error while searching for 'offline'")
	assert.Contains(t, f.say("wikipedia"), "Please specify a topic to search.")
}

func TestTimeAndCalculation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	assert.Equal(t, "02:00:05 PM", f.say("what time is it"))
	assert.Equal(t, "The result is 14", f.say("calculate 2 + 3 * 4"))
	assert.Equal(t, "The result is 2.5", f.say("compute (10)/4"))
	assert.Equal(t, calculationFailed, f.say("calculate 1/0"))
	assert.Equal(t, calculationFailed, f.say("calculate"))
	assert.Equal(t, calculationFailed, f.say("calculate 2 plus 3"))
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	assert.Equal(t, "Translation: [fr] good night", f.say("translate good night to French"))
	assert.Equal(t, "Sorry, I couldn't translate that text", f.say("translate good night into klingon"))
	assert.Equal(t, "Please specify text and target language. Example: 'translate hello to hindi'\nSupported languages: french, hindi", f.say("translate"))
}

func TestGreetingHelpAndUnknown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	assert.Equal(t, greetingResponse, f.say("hi there"))
	assert.Equal(t, greetingResponse, f.say("Hello"))
	assert.Contains(t, f.say("help"), "Text translation (supported languages: french, hindi)")
	assert.Equal(t, unknownResponse, f.say("this is nonsense"))
}

func TestClassifierFallback(t *testing.T) {
	t.Parallel()
	classifier := &fakeClassifier{intent: myopenai.IntentGreeting}
	f := newFixture(t, classifier)

	assert.Equal(t, greetingResponse, f.say("good morning"))
	assert.Equal(t, 1, classifier.calls)

	f.say("weather in london")
	assert.Equal(t, 1, classifier.calls)
}

func TestHistoryAndSuggestions(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	var res Result
	for i := 1; i <= 5; i++ {
		res = f.assistant.Process(context.Background(), "alice", fmt.Sprintf("calculate %d", i))
	}
	require.Len(t, res.History, 3)
	assert.Equal(t, "calculate 3", res.History[0].Command)
	assert.Equal(t, "calculate 5", res.History[2].Command)
	assert.Equal(t, "14:00:05", res.History[2].Timestamp)
	assert.Empty(t, f.assistant.History("bob"))

	require.Len(t, res.Suggestions, 3)
	seen := map[string]bool{}
	for _, s := range res.Suggestions {
		assert.False(t, seen[s], "duplicate suggestion %q", s)
		seen[s] = true
	}
	assert.Contains(t, []string{"tip one", "tip two", "tip three", "tip four"}, f.assistant.RandomTip())
}
