package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/wa-concierge/internal/models"
)

// Geocoder resolves a free-text address to coordinates. A nil coordinate
// with nil error means "no result": the address simply was not found.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.Coord, error)
}

// NominatimClient queries the OSM Nominatim search API.
type NominatimClient struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

func NewNominatimClient(endpoint, userAgent string) *NominatimClient {
	return &NominatimClient{
		Endpoint:  endpoint,
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *NominatimClient) Geocode(ctx context.Context, address string) (*models.Coord, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.Endpoint+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", n.UserAgent)

	resp, err := n.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode: status %d", resp.StatusCode)
	}
	var out []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("geocode decode: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode: bad lat %q", out[0].Lat)
	}
	lon, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode: bad lon %q", out[0].Lon)
	}
	return &models.Coord{Lat: lat, Lon: lon}, nil
}

// Static is a fixed lookup table used in local runs and tests. Keys are
// matched case-insensitively.
type Static map[string]models.Coord

func (s Static) Geocode(ctx context.Context, address string) (*models.Coord, error) {
	if c, ok := s[strings.ToLower(strings.TrimSpace(address))]; ok {
		return &c, nil
	}
	return nil, nil
}
