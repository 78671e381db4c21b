package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/nickromney-org/github-latest-stable-release/internal/release"
	"golang.org/x/oauth2"
)

// tokenType is sent as the Authorization scheme: "Authorization: token <value>"
const tokenType = "token"

// Client wraps the GitHub API client
type Client struct {
	gh     *gh.Client
	logger *slog.Logger
}

type options struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

// Option configures a Client
type Option func(*options)

// WithBaseURL points the client at a different API root, e.g. GitHub Enterprise
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewClient creates a new GitHub API client.
// An empty token makes unauthenticated requests.
func NewClient(token string, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	httpClient := &http.Client{Timeout: o.timeout}
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token, TokenType: tokenType},
		)
		httpClient.Transport = &oauth2.Transport{Source: ts}
	}

	client := gh.NewClient(httpClient)

	if o.baseURL != "" {
		u, err := parseBaseURL(o.baseURL)
		if err != nil {
			return nil, err
		}
		client.BaseURL = u
	}

	if o.userAgent != "" {
		client.UserAgent = o.userAgent
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		gh:     client,
		logger: logger,
	}, nil
}

// BaseURL returns the API root requests are sent to
func (c *Client) BaseURL() string {
	return c.gh.BaseURL.String()
}

// ListReleases fetches the first page of releases for owner/repo, newest first
func (c *Client) ListReleases(ctx context.Context, owner, repo string) ([]release.Release, error) {
	c.logger.Debug("fetching releases", "url", fmt.Sprintf("%srepos/%s/%s/releases", c.BaseURL(), owner, repo))

	ghReleases, resp, err := c.gh.Repositories.ListReleases(ctx, owner, repo, nil)
	if err != nil {
		return nil, classify(err)
	}

	// go-github accepts an empty or null body as an empty list
	if ghReleases == nil {
		return nil, fmt.Errorf("%w: body is not a JSON array", release.ErrMalformedResponse)
	}

	if resp != nil {
		c.logger.Debug("fetched releases",
			"status", resp.StatusCode,
			"rate_remaining", resp.Rate.Remaining,
			"rate_limit", resp.Rate.Limit,
		)
	}

	releases := make([]release.Release, 0, len(ghReleases))
	for i, ghRelease := range ghReleases {
		r, err := parseRelease(ghRelease)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", release.ErrMalformedResponse, i, err)
		}
		releases = append(releases, r)
	}

	return releases, nil
}

// parseRelease converts a GitHub release to our Release type
func parseRelease(ghRelease *gh.RepositoryRelease) (release.Release, error) {
	if ghRelease == nil {
		return release.Release{}, fmt.Errorf("null release")
	}
	if ghRelease.Prerelease == nil {
		return release.Release{}, fmt.Errorf("missing prerelease flag")
	}
	// draft is only consulted once prerelease is known to be false
	if ghRelease.Draft == nil && !ghRelease.GetPrerelease() {
		return release.Release{}, fmt.Errorf("missing draft flag")
	}

	r := release.Release{
		TagName:    ghRelease.GetTagName(),
		Untagged:   ghRelease.TagName == nil,
		Name:       ghRelease.GetName(),
		Prerelease: ghRelease.GetPrerelease(),
		Draft:      ghRelease.GetDraft(),
		URL:        ghRelease.GetHTMLURL(),
	}
	if ts := ghRelease.GetPublishedAt(); !ts.IsZero() {
		r.PublishedAt = ts.Time
	}

	return r, nil
}

// classify maps go-github errors onto the release error taxonomy
func classify(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", release.ErrMalformedResponse, err)
	}

	return &release.RequestError{
		StatusCode: statusCode(err),
		Err:        err,
	}
}

func statusCode(err error) int {
	var errResp *gh.ErrorResponse
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError

	var resp *http.Response
	switch {
	case errors.As(err, &errResp):
		resp = errResp.Response
	case errors.As(err, &rateErr):
		resp = rateErr.Response
	case errors.As(err, &abuseErr):
		resp = abuseErr.Response
	}

	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", raw)
	}

	return u, nil
}
