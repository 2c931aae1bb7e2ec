package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"astra/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocoder_FallbackCities(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.URL, time.Second)
	tests := []struct {
		location string
		lat, lon float64
	}{
		{"Mumbai, India", 19.0760, 72.8777},
		{"  MUMBAI  ", 19.0760, 72.8777},
		{"New Delhi, India", 28.6139, 77.2090},
		{"Born in new delhi", 28.6139, 77.2090},
		{"Bengaluru, Karnataka", 12.9716, 77.5946},
	}
	for _, tt := range tests {
		lat, lon, err := g.Geocode(context.Background(), tt.location)
		require.NoError(t, err, tt.location)
		assert.Equal(t, tt.lat, lat, tt.location)
		assert.Equal(t, tt.lon, lon, tt.location)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestGeocoder_Nominatim(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "astra_astrology", r.Header.Get("User-Agent"))
		q := r.URL.Query().Get("q")
		queries = append(queries, q)

		w.Header().Set("Content-Type", "application/json")
		if q == "Varanasi" {
			_, _ = w.Write([]byte(`[{"lat":"25.3176","lon":"82.9739","display_name":"Varanasi"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.URL, time.Second)
	lat, lon, err := g.Geocode(context.Background(), "Varanasi, Uttar Pradesh")
	require.NoError(t, err)
	assert.InDelta(t, 25.3176, lat, 1e-9)
	assert.InDelta(t, 82.9739, lon, 1e-9)
	assert.Equal(t, []string{"Varanasi, Uttar Pradesh", "Varanasi"}, queries)
}

func TestGeocoder_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.URL, time.Second)
	_, _, err := g.Geocode(context.Background(), "Atlantis")
	assert.True(t, errors.Is(err, errs.ErrLocationNotFound))

	_, _, err = g.Geocode(context.Background(), "   ")
	assert.True(t, errors.Is(err, errs.ErrLocationNotFound))
}
