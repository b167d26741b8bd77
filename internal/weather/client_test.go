package weather

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "london", r.URL.Query().Get("q"))
		assert.Equal(t, "key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		_, _ = io.WriteString(w, `{"cod":200,"main":{"temp":12.5,"humidity":81},"weather":[{"description":"light rain"}],"wind":{"speed":4.1}}`)
	}))
	defer srv.Close()

	report, err := New("key", srv.URL).Current(context.Background(), "london")
	require.NoError(t, err)
	assert.Equal(t, "Temperature in london is 12.5°C with light rain. Humidity: 81%, Wind Speed: 4.1 m/s", report.String())
}

func TestCurrentNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"cod":"404","message":"city not found"}`)
	}))
	defer srv.Close()

	_, err := New("key", srv.URL).Current(context.Background(), "atlantis")
	require.ErrorIs(t, err, ErrCityNotFound)
}

func TestCurrentWithoutKey(t *testing.T) {
	t.Parallel()
	_, err := New("", "").Current(context.Background(), "london")
	require.ErrorIs(t, err, ErrNoAPIKey)
}

func TestTrimFloat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "20", trimFloat(20))
	assert.Equal(t, "-3.25", trimFloat(-3.25))
	assert.Equal(t, "0", trimFloat(0))
}
