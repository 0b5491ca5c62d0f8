package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/notionsync/internal/notion"
)

// Defaults for Config fields left zero.
const (
	DefaultBaseURL   = "https://api.notion.com/v1/"
	DefaultVersion   = "2022-06-28"
	DefaultPageSize  = 100
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 3.0
	DefaultBurst     = 5
)

// maxBody bounds how much of a response body is read.
const maxBody = 32 << 20

// Config configures a Client.
type Config struct {
	// Token is the integration token sent as a bearer credential.
	Token string

	// BaseURL is the API root, ending in a slash.
	BaseURL string

	// Version is the pinned Notion-Version header.
	Version string

	// PageSize is requested on every listing (1 to 100).
	PageSize int

	// Timeout bounds each request, including reading the body.
	Timeout time.Duration

	// RateLimit is the sustained request rate per second; Burst is the
	// bucket size.
	RateLimit float64
	Burst     int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.PageSize <= 0 || c.PageSize > DefaultPageSize {
		c.PageSize = DefaultPageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	return c
}

// Client talks to the Notion REST API. It implements engine.Remote.
//
// Thread-safety: Client is safe for concurrent use. All requests share one
// rate limiter.
type Client struct {
	base     *url.URL
	http     *http.Client
	limiter  *rate.Limiter
	pageSize int
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the underlying round tripper. The auth headers are
// still applied on top of it.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport.(*headerTransport).Transport = rt
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client. The token is required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("remote: token is required")
	}
	cfg = cfg.withDefaults()

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid base url %q: %w", cfg.BaseURL, err)
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &headerTransport{
				Token:   cfg.Token,
				Version: cfg.Version,
			},
		},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		pageSize: cfg.PageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchContainer fetches a block, page or database of known kind by id.
func (c *Client) FetchContainer(ctx context.Context, id string, kind notion.Kind) (notion.Object, error) {
	switch kind {
	case notion.KindPage:
		return c.getPage(ctx, id)
	case notion.KindDatabase:
		return c.getDatabase(ctx, id)
	case notion.KindBlock:
		return c.getBlock(ctx, id)
	}
	return nil, fmt.Errorf("fetch %s: unsupported kind %q", id, kind)
}

// Probe resolves an id of unknown kind. The id is fetched as a block first:
// a child_page or child_database block resolves to the page or database it
// stands for, anything else is its own container.
func (c *Client) Probe(ctx context.Context, id string) (notion.Probe, error) {
	b, err := c.getBlock(ctx, id)
	if err != nil {
		return notion.Probe{}, err
	}
	probe := notion.Probe{Block: b, Container: b}
	switch kind, _ := b.ChildContainer(); kind {
	case notion.KindPage:
		probe.Container, err = c.getPage(ctx, id)
	case notion.KindDatabase:
		probe.Container, err = c.getDatabase(ctx, id)
	}
	if err != nil {
		return notion.Probe{}, err
	}
	return probe, nil
}

func (c *Client) getBlock(ctx context.Context, id string) (*notion.Block, error) {
	data, err := c.do(ctx, http.MethodGet, []string{"blocks", id}, nil, nil)
	if err != nil {
		return nil, err
	}
	return notion.DecodeBlock(data)
}

func (c *Client) getPage(ctx context.Context, id string) (*notion.Page, error) {
	data, err := c.do(ctx, http.MethodGet, []string{"pages", id}, nil, nil)
	if err != nil {
		return nil, err
	}
	return notion.DecodePage(data)
}

func (c *Client) getDatabase(ctx context.Context, id string) (*notion.Database, error) {
	data, err := c.do(ctx, http.MethodGet, []string{"databases", id}, nil, nil)
	if err != nil {
		return nil, err
	}
	return notion.DecodeDatabase(data)
}

// ListChildren returns one page of a block's or page's child blocks.
func (c *Client) ListChildren(ctx context.Context, id, cursor string) (notion.ResultPage[*notion.Block], error) {
	data, err := c.do(ctx, http.MethodGet, []string{"blocks", id, "children"}, c.pageQuery(cursor), nil)
	if err != nil {
		return notion.ResultPage[*notion.Block]{}, err
	}
	return decodeList(data, notion.DecodeBlock)
}

// QueryDatabaseRows returns one page of a database's rows: pages, and
// databases nested in it.
func (c *Client) QueryDatabaseRows(ctx context.Context, id, cursor string) (notion.ResultPage[notion.Object], error) {
	body := queryRequest{PageSize: c.pageSize, StartCursor: cursor}
	data, err := c.do(ctx, http.MethodPost, []string{"databases", id, "query"}, nil, body)
	if err != nil {
		return notion.ResultPage[notion.Object]{}, err
	}
	return decodeList(data, notion.DecodeRow)
}

// ListComments returns one page of the unresolved comments on a block or
// page.
func (c *Client) ListComments(ctx context.Context, id, cursor string) (notion.ResultPage[*notion.Comment], error) {
	q := c.pageQuery(cursor)
	q.Set("block_id", id)
	data, err := c.do(ctx, http.MethodGet, []string{"comments"}, q, nil)
	if err != nil {
		return notion.ResultPage[*notion.Comment]{}, err
	}
	return decodeList(data, notion.DecodeComment)
}

type queryRequest struct {
	PageSize    int    `json:"page_size"`
	StartCursor string `json:"start_cursor,omitempty"`
}

func (c *Client) pageQuery(cursor string) url.Values {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(c.pageSize))
	if cursor != "" {
		q.Set("start_cursor", cursor)
	}
	return q
}

// do performs one rate-limited request and returns the 2xx body.
func (c *Client) do(ctx context.Context, method string, path []string, query url.Values, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := c.base.JoinPath(path...)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", u.Path, "error", err)
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, transportError(ctx, err)
	}
	c.logger.Debug("request",
		"method", method,
		"path", u.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, data)
	}
	return data, nil
}

// listResponse is the envelope of every paginated endpoint.
type listResponse struct {
	Object     string            `json:"object"`
	Results    []json.RawMessage `json:"results"`
	NextCursor *string           `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

func decodeList[T any](data []byte, decode func([]byte) (T, error)) (notion.ResultPage[T], error) {
	var env listResponse
	if err := json.Unmarshal(data, &env); err != nil {
		return notion.ResultPage[T]{}, malformedResponse("decode list: %v", err)
	}
	if env.Results == nil {
		return notion.ResultPage[T]{}, malformedResponse("list response has no results")
	}

	page := notion.ResultPage[T]{Results: make([]T, 0, len(env.Results))}
	if env.HasMore {
		if env.NextCursor == nil || *env.NextCursor == "" {
			return notion.ResultPage[T]{}, malformedResponse("list response has more results but no next_cursor")
		}
		page.NextCursor = *env.NextCursor
	}
	for _, raw := range env.Results {
		item, err := decode(raw)
		if err != nil {
			return notion.ResultPage[T]{}, err
		}
		page.Results = append(page.Results, item)
	}
	return page, nil
}
