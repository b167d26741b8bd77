package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

var (
	// ErrCityNotFound is returned when the provider has no data for the city.
	ErrCityNotFound = errors.New("city not found")
	// ErrNoAPIKey is returned when no OpenWeatherMap key is configured.
	ErrNoAPIKey = errors.New("weather api key not configured")
)

// Report is the subset of current conditions the assistant reads out.
type Report struct {
	City        string
	Temperature float64
	Description string
	Humidity    int
	WindSpeed   float64
}

func (r Report) String() string {
	return fmt.Sprintf("Temperature in %s is %s°C with %s. Humidity: %d%%, Wind Speed: %s m/s",
		r.City, trimFloat(r.Temperature), r.Description, r.Humidity, trimFloat(r.WindSpeed))
}

// Client queries the OpenWeatherMap current weather endpoint.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New creates a client. baseURL may be empty to use the public endpoint.
func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type currentResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Current fetches current conditions for city in metric units.
func (c *Client) Current(ctx context.Context, city string) (Report, error) {
	if c.apiKey == "" {
		return Report{}, ErrNoAPIKey
	}

	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return Report{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Report{}, fmt.Errorf("%w: %s", ErrCityNotFound, city)
	case resp.StatusCode != http.StatusOK:
		return Report{}, fmt.Errorf("weather request: unexpected status %d", resp.StatusCode)
	}

	var body currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Report{}, fmt.Errorf("weather decode: %w", err)
	}

	report := Report{
		City:        city,
		Temperature: body.Main.Temp,
		Humidity:    body.Main.Humidity,
		WindSpeed:   body.Wind.Speed,
	}
	descriptions := make([]string, 0, len(body.Weather))
	for _, w := range body.Weather {
		descriptions = append(descriptions, w.Description)
	}
	report.Description = strings.Join(descriptions, ", ")
	return report, nil
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
