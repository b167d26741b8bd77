package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/rs/zerolog"
)

const (
	defaultDeepLURL    = "https://api-free.deepl.com/v2/translate"
	defaultMyMemoryURL = "https://api.mymemory.translated.net/get"
	// CacheSize bounds the number of remembered translations.
	CacheSize = 100
)

// ErrNoTranslation is returned when no provider produced a translation.
var ErrNoTranslation = errors.New("no translation available")

// Option customises a Translator.
type Option func(*Translator)

// WithDeepLURL overrides the DeepL endpoint.
func WithDeepLURL(u string) Option {
	return func(t *Translator) { t.deeplURL = u }
}

// WithMyMemoryURL overrides the MyMemory endpoint.
func WithMyMemoryURL(u string) Option {
	return func(t *Translator) { t.myMemoryURL = u }
}

// Translator translates English text, trying DeepL first when a key is
// configured and MyMemory otherwise. Results are cached.
type Translator struct {
	deeplKey    string
	deeplURL    string
	myMemoryURL string
	languages   map[string]string
	http        *http.Client
	logger      zerolog.Logger

	mu    sync.Mutex
	cache *lru.Cache
}

// New creates a Translator. languages maps lower-case language names to codes.
func New(deeplKey string, languages map[string]string, logger zerolog.Logger, opts ...Option) *Translator {
	t := &Translator{
		deeplKey:    deeplKey,
		deeplURL:    defaultDeepLURL,
		myMemoryURL: defaultMyMemoryURL,
		languages:   languages,
		http:        &http.Client{Timeout: 5 * time.Second},
		logger:      logger,
		cache:       lru.New(CacheSize),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LanguageCode resolves a language name to its code. Unknown names are
// returned lower-cased so callers may pass codes directly.
func (t *Translator) LanguageCode(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if code, ok := t.languages[lang]; ok {
		return code
	}
	return lang
}

// Translate returns text translated into lang, a language name or code.
func (t *Translator) Translate(ctx context.Context, text, lang string) (string, error) {
	code := t.LanguageCode(lang)
	key := text + "_" + code

	t.mu.Lock()
	cached, ok := t.cache.Get(key)
	t.mu.Unlock()
	if ok {
		return cached.(string), nil
	}

	var translation string
	if t.deeplKey != "" {
		out, err := t.deepl(ctx, text, code)
		if err != nil {
			t.logger.Error().Err(err).Msg("DeepL API error")
		}
		translation = out
	}
	if translation == "" {
		out, err := t.myMemory(ctx, text, code)
		if err != nil {
			return "", err
		}
		translation = out
	}

	t.mu.Lock()
	t.cache.Add(key, translation)
	t.mu.Unlock()
	return translation, nil
}

type deeplRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
}

type deeplResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

func (t *Translator) deepl(ctx context.Context, text, code string) (string, error) {
	payload, err := json.Marshal(deeplRequest{Text: []string{text}, TargetLang: strings.ToUpper(code)})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.deeplURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+t.deeplKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepl request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepl request: unexpected status %d", resp.StatusCode)
	}

	var body deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("deepl decode: %w", err)
	}
	if len(body.Translations) == 0 {
		return "", ErrNoTranslation
	}
	return body.Translations[0].Text, nil
}

// myMemoryResponse.Status arrives as a number on success and as a string on
// some errors.
type myMemoryResponse struct {
	Status       json.RawMessage `json:"responseStatus"`
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
}

func (t *Translator) myMemory(ctx context.Context, text, code string) (string, error) {
	query := url.Values{}
	query.Set("q", text)
	query.Set("langpair", "en|"+code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.myMemoryURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("mymemory request: %w", err)
	}
	defer resp.Body.Close()

	var body myMemoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("mymemory decode: %w", err)
	}
	status := strings.Trim(string(body.Status), `"`)
	if status != "200" || body.ResponseData.TranslatedText == "" {
		return "", fmt.Errorf("%w: mymemory status %s", ErrNoTranslation, status)
	}
	return body.ResponseData.TranslatedText, nil
}
