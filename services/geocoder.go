package services

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"astra/errs"
	"astra/logger"

	"github.com/go-resty/resty/v2"
)

// Geocoder は地名を座標に変換する
type Geocoder interface {
	Geocode(ctx context.Context, location string) (lat, lon float64, err error)
}

type coordinates struct {
	lat, lon float64
}

// Nominatim が使えないときの主要都市
var cityFallbacks = map[string]coordinates{
	"visakhapatnam":      {17.7312, 83.3010},
	"vizag":              {17.7312, 83.3010},
	"mumbai":             {19.0760, 72.8777},
	"delhi":              {28.7041, 77.1025},
	"new delhi":          {28.6139, 77.2090},
	"chennai":            {13.0827, 80.2707},
	"bangalore":          {12.9716, 77.5946},
	"bengaluru":          {12.9716, 77.5946},
	"hyderabad":          {17.3850, 78.4867},
	"kolkata":            {22.5726, 88.3639},
	"pune":               {18.5204, 73.8567},
	"ahmedabad":          {23.0225, 72.5714},
	"jaipur":             {26.9124, 75.7873},
	"lucknow":            {26.8467, 80.9462},
	"kanpur":             {26.4499, 80.3319},
	"nagpur":             {21.1458, 79.0882},
	"indore":             {22.7196, 75.8577},
	"kochi":              {9.9312, 76.2673},
	"cochin":             {9.9312, 76.2673},
	"thiruvananthapuram": {8.5241, 76.9366},
	"trivandrum":         {8.5241, 76.9366},
}

var spaceRun = regexp.MustCompile(`\s+`)

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimGeocoder は代表都市の表を先に引き、なければ Nominatim に問い合わせる
type NominatimGeocoder struct {
	client *resty.Client
}

func NewNominatimGeocoder(baseURL string, timeout time.Duration) *NominatimGeocoder {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("User-Agent", "astra_astrology").
		SetHeader("Accept", "application/json")
	return &NominatimGeocoder{client: client}
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, location string) (float64, float64, error) {
	loc := spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(location)), " ")
	if loc == "" {
		return 0, 0, errs.ErrLocationNotFound
	}

	if c, ok := lookupFallback(loc); ok {
		return c.lat, c.lon, nil
	}

	queries := []string{strings.TrimSpace(location)}
	if i := strings.Index(location, ","); i > 0 {
		queries = append(queries, strings.TrimSpace(location[:i]))
	}
	for _, q := range queries {
		lat, lon, err := g.search(ctx, q)
		if err == nil {
			return lat, lon, nil
		}
		logger.Debug("geocode attempt failed", "query", q, "error", err)
	}
	return 0, 0, errs.WithMessage(errs.ErrLocationNotFound, fmt.Sprintf("could not find the birth location %q", location))
}

func lookupFallback(loc string) (coordinates, bool) {
	city := strings.TrimSpace(strings.Split(loc, ",")[0])
	if c, ok := cityFallbacks[city]; ok {
		return c, true
	}
	if fields := strings.Fields(city); len(fields) > 0 {
		if c, ok := cityFallbacks[fields[0]]; ok {
			return c, true
		}
	}
	// 長い名前から順に部分一致 (new delhi を delhi より優先)
	var best string
	for name := range cityFallbacks {
		if strings.Contains(loc, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return cityFallbacks[best], true
	}
	return coordinates{}, false
}

func (g *NominatimGeocoder) search(ctx context.Context, query string) (float64, float64, error) {
	var places []nominatimPlace
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"format": "json",
			"limit":  "1",
		}).
		SetResult(&places).
		Get("/search")
	if err != nil {
		return 0, 0, err
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, 0, fmt.Errorf("nominatim status: %d", resp.StatusCode())
	}
	if len(places) == 0 {
		return 0, 0, fmt.Errorf("no result for %q", query)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q: %w", places[0].Lon, err)
	}
	return lat, lon, nil
}
