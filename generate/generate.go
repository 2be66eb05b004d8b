// Package generate asks a chat-completions model for a complete site:
// a title, a three-color palette and the HTML.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adammathes/sitedeck/export"
	"github.com/adammathes/sitedeck/theme"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultModel    = "gpt-4.1"
	DefaultTimeout  = 3 * time.Minute
)

var (
	ErrNoAPIKey        = errors.New("generate: no API key configured")
	ErrInvalidResponse = errors.New("generate: model returned an invalid site")
)

// SiteType is one of the layouts the studio offers.
type SiteType string

const (
	Portfolio   SiteType = "portfolio"
	LandingPage SiteType = "landing-page"
	Ecommerce   SiteType = "ecommerce"
	Blog        SiteType = "blog"
	Agency      SiteType = "agency"
	Restaurant  SiteType = "restaurant"
)

var SiteTypes = []SiteType{Portfolio, LandingPage, Ecommerce, Blog, Agency, Restaurant}

// ParseSiteType accepts a known site type; empty means portfolio.
func ParseSiteType(s string) (SiteType, error) {
	if s == "" {
		return Portfolio, nil
	}
	for _, t := range SiteTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown site type %q", s)
}

// Request describes the site to build.
type Request struct {
	Description string
	SiteType    SiteType
	ThemeColor  string // hex color, "" lets the model choose
}

// Site is a generated site.
type Site struct {
	Title   string        `json:"title"`
	Palette theme.Palette `json:"palette"`
	HTML    string        `json:"html"`
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	Endpoint string
	APIKey   string
	Model    string
	HTTP     *http.Client
	Logger   *zap.Logger
}

// NewClient returns a client with default endpoint, model and timeout.
func NewClient(apiKey string) *Client {
	return &Client{
		Endpoint: DefaultEndpoint,
		APIKey:   apiKey,
		Model:    DefaultModel,
		HTTP:     &http.Client{Timeout: DefaultTimeout},
		Logger:   zap.NewNop(),
	}
}

// Generate builds a new site from a description.
func (c *Client) Generate(ctx context.Context, req Request) (*Site, error) {
	return c.complete(ctx, req, strings.TrimSpace(req.Description))
}

// Rebuild regenerates an existing site, guided by a new description. The
// current site is sent as Markdown.
func (c *Client) Rebuild(ctx context.Context, req Request, currentHTML string) (*Site, error) {
	md, err := export.Markdown(currentHTML)
	if err != nil {
		return nil, fmt.Errorf("preparing site for rebuild: %w", err)
	}
	prompt := fmt.Sprintf("Rebuild this website using prompt - %s. Site to rebuild:\n\n%s", strings.TrimSpace(req.Description), md)
	return c.complete(ctx, req, prompt)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model          string    `json:"model"`
	Messages       []message `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, req Request, description string) (*Site, error) {
	if c.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if description == "" {
		return nil, errors.New("generate: empty description")
	}
	siteType := req.SiteType
	if siteType == "" {
		siteType = Portfolio
	}
	themeColor := req.ThemeColor
	if themeColor == "" {
		themeColor = "auto"
	}

	body := completionRequest{
		Model: c.model(),
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPrompt, description, siteType, themeColor)},
		},
	}
	body.ResponseFormat.Type = "json_object"
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	log := c.logger()
	start := time.Now()
	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("reading generate response: %w", err)
	}
	var out completionResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(raw, &out) == nil && out.Error != nil {
			return nil, fmt.Errorf("generate: HTTP %d: %s", resp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("generate: HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &out); err != nil || len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: malformed completion", ErrInvalidResponse)
	}

	site, err := ParseSite(out.Choices[0].Message.Content)
	if err != nil {
		log.Debug("rejected model output", zap.String("content", out.Choices[0].Message.Content))
		return nil, err
	}
	log.Info("generated site",
		zap.String("title", site.Title),
		zap.String("type", string(siteType)),
		zap.Int("bytes", len(site.HTML)),
		zap.Duration("took", time.Since(start)))
	return site, nil
}

// ParseSite decodes a model reply into a Site. Code fences around the JSON
// are tolerated; a missing title or HTML body is not.
func ParseSite(content string) (*Site, error) {
	content = stripFences(content)
	var site Site
	if err := json.Unmarshal([]byte(content), &site); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	site.Title = strings.TrimSpace(site.Title)
	site.HTML = strings.TrimSpace(stripFences(site.HTML))
	if site.HTML == "" {
		return nil, fmt.Errorf("%w: empty html", ErrInvalidResponse)
	}
	if site.Title == "" {
		site.Title = "Untitled site"
	}
	site.Palette = site.Palette.WithDefaults()
	return &site, nil
}

// stripFences removes a surrounding ``` block, with or without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func (c *Client) endpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

func (c *Client) model() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return &http.Client{Timeout: DefaultTimeout}
	}
	return c.HTTP
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

const systemPrompt = `You are an elite website designer and front-end engineer.
You only output valid JSON and never output HTML outside JSON.

The JSON structure must be:

{
  "title": "string",
  "palette": {
    "primary": "string",
    "background": "string",
    "text": "string"
  },
  "html": "string"
}

Rules:
- HTML must be embedded inside the JSON only.
- Palette colors are hex values like #1a2b3c.
- Create premium quality, elegant, modern, responsive HTML.
- A hero section must be provided.
- Include images.
- Use large spacing, a typography scale, gradients and generous padding.
- Use only inline styles or minimal classes.
- Never wrap the output in backticks or code blocks.`

const userPrompt = `Generate a premium-quality website.

User Description:
%s

Site Type: %s
Theme Color: %s

Sections Required:
- Hero
- About
- Services
- Contact

Return only valid JSON following the schema exactly.`
