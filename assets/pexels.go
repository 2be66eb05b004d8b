package assets

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

const (
	DefaultPexelsEndpoint = "https://api.pexels.com/v1"
	pexelsPerPage         = 20
)

var ErrNoAPIKey = errors.New("assets: no Pexels API key configured")

// Photo is one stock photo search result.
type Photo struct {
	ID           int64    `json:"id"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	URL          string   `json:"url"`
	Photographer string   `json:"photographer"`
	Alt          string   `json:"alt"`
	Src          PhotoSrc `json:"src"`
}

type PhotoSrc struct {
	Original string `json:"original"`
	Large    string `json:"large"`
	Medium   string `json:"medium"`
	Small    string `json:"small"`
}

// Pexels searches the Pexels stock photo API.
type Pexels struct {
	APIKey   string
	Endpoint string
	HTTP     *http.Client
}

func NewPexels(apiKey string) *Pexels {
	return &Pexels{
		APIKey:   apiKey,
		Endpoint: DefaultPexelsEndpoint,
		HTTP:     &http.Client{Timeout: 20 * time.Second},
	}
}

// Search returns the first page of photos matching query.
func (p *Pexels) Search(ctx context.Context, query string) ([]Photo, error) {
	if p.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	endpoint := strings.TrimSuffix(p.Endpoint, "/") + "/search?" + url.Values{
		"query":    {query},
		"per_page": {fmt.Sprint(pexelsPerPage)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", p.APIKey)

	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pexels search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels search: HTTP %d", resp.StatusCode)
	}

	var body struct {
		Photos []Photo `json:"photos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding pexels response: %w", err)
	}
	return body.Photos, nil
}
