package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	defaultBaseURL        = "https://en.wikipedia.org"
	userAgent             = "assistant/1.0 (voice assistant backend)"
	summarySentences      = 3
	disambiguationOptions = 5
	relatedResults        = 3
)

var errPageNotFound = errors.New("page not found")

// Kind tells which shape of answer a lookup produced.
type Kind int

const (
	// KindArticle is a direct or search-resolved article summary.
	KindArticle Kind = iota
	// KindDisambiguation lists candidate topics for an ambiguous query.
	KindDisambiguation
	// KindRelated lists search hits whose summaries could not be fetched.
	KindRelated
	// KindNotFound means nothing matched.
	KindNotFound
)

// Result is the outcome of a topic lookup.
type Result struct {
	Kind    Kind
	Title   string
	Summary string
	URL     string
	// Options holds disambiguation candidates or related titles.
	Options []string
	// Resolved is true when the article came from a search rather than the exact title.
	Resolved bool
}

// Client talks to the Wikipedia REST and action APIs.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client. baseURL may be empty to use English Wikipedia.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type summaryResponse struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Lookup resolves topic to an article summary, falling back to search when
// there is no page with that exact title.
func (c *Client) Lookup(ctx context.Context, topic string) (Result, error) {
	page, err := c.summary(ctx, topic)
	switch {
	case err == nil && page.Type == "disambiguation":
		options, err := c.search(ctx, topic, disambiguationOptions)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindDisambiguation, Title: page.Title, Options: options}, nil
	case err == nil:
		return articleResult(page, false), nil
	case !errors.Is(err, errPageNotFound):
		return Result{}, err
	}

	titles, err := c.search(ctx, topic, relatedResults)
	if err != nil {
		return Result{}, err
	}
	if len(titles) == 0 {
		return Result{Kind: KindNotFound}, nil
	}

	page, err = c.summary(ctx, titles[0])
	if err != nil || page.Type == "disambiguation" {
		return Result{Kind: KindRelated, Options: titles}, nil
	}
	return articleResult(page, true), nil
}

func articleResult(page summaryResponse, resolved bool) Result {
	return Result{
		Kind:     KindArticle,
		Title:    page.Title,
		Summary:  FirstSentences(page.Extract, summarySentences),
		URL:      page.ContentURLs.Desktop.Page,
		Resolved: resolved,
	}
}

func (c *Client) summary(ctx context.Context, title string) (summaryResponse, error) {
	endpoint := c.baseURL + "/api/rest_v1/page/summary/" + url.PathEscape(pageKey(title)) + "?redirect=true"
	var out summaryResponse
	err := c.getJSON(ctx, endpoint, &out)
	return out, err
}

func (c *Client) search(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("search", query)
	params.Set("limit", fmt.Sprint(limit))
	params.Set("namespace", "0")
	params.Set("format", "json")

	// opensearch answers [query, [titles], [descriptions], [urls]].
	var raw []json.RawMessage
	if err := c.getJSON(ctx, c.baseURL+"/w/api.php?"+params.Encode(), &raw); err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, nil
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return nil, fmt.Errorf("wikipedia search decode: %w", err)
	}
	return titles, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wikipedia request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errPageNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia request: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("wikipedia decode: %w", err)
	}
	return nil
}

// pageKey converts a title to Wikipedia's page key: underscores for spaces and
// an upper-case first letter.
func pageKey(title string) string {
	key := strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}

// FirstSentences returns at most n sentences of text.
func FirstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	count := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				count++
				if count == n {
					return text[:i+1]
				}
			}
		}
	}
	return text
}
