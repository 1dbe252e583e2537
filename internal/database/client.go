package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

const restPath = "/rest/v1/"

// Doer sends a single HTTP request. tls_client.HttpClient satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a PostgREST table API (Supabase) over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient Doer
}

type Option func(*Client)

// WithHTTPClient replaces the default tls-client transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.httpClient = d
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("backend url is required")
	}
	if apiKey == "" {
		return nil, errors.New("backend api key is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		hc, err := NewHTTPClient(30, "")
		if err != nil {
			return nil, err
		}
		c.httpClient = hc
	}
	return c, nil
}

// NewHTTPClient builds the tls-client transport used for backend calls.
// An unknown or empty profile name falls back to chrome_120.
func NewHTTPClient(timeoutSecs int, profile string) (tls_client.HttpClient, error) {
	p, ok := profiles.MappedTLSClients[profile]
	if !ok {
		p = profiles.Chrome_120
	}

	hc, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(),
		tls_client.WithTimeoutSeconds(timeoutSecs),
		tls_client.WithClientProfile(p),
	)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	return hc, nil
}

func (c *Client) Ideas() *Table[Idea, IdeaInsert, IdeaUpdate] {
	return From[Idea, IdeaInsert, IdeaUpdate](c, TableIdeas)
}

func (c *Client) Users() *Table[User, UserInsert, UserUpdate] {
	return From[User, UserInsert, UserUpdate](c, TableUsers)
}

func (c *Client) Contents() *Table[Content, ContentInsert, ContentUpdate] {
	return From[Content, ContentInsert, ContentUpdate](c, TableContents)
}

func (c *Client) Sources() *Table[Source, SourceInsert, SourceUpdate] {
	return From[Source, SourceInsert, SourceUpdate](c, TableSources)
}

func (c *Client) IdeaGenerationPrompts() *Table[Prompt, PromptInsert, PromptUpdate] {
	return From[Prompt, PromptInsert, PromptUpdate](c, TableIdeaGenerationPrompts)
}

func (c *Client) ContentGenerationPrompts() *Table[Prompt, PromptInsert, PromptUpdate] {
	return From[Prompt, PromptInsert, PromptUpdate](c, TableContentGenerationPrompts)
}

func (c *Client) ScheduledContent() *Table[ScheduledContent, ScheduledContentInsert, ScheduledContentUpdate] {
	return From[ScheduledContent, ScheduledContentInsert, ScheduledContentUpdate](c, TableScheduledContent)
}

// Ping checks that the backend answers an authenticated select.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, TableUsers, Query{Limit: 1}.Values(), nil, "")
	return err
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, body any, prefer string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + restPath + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}
