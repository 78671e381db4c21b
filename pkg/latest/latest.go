// Package latest looks up the latest stable release of a GitHub repository.
//
// A stable release is one that is neither a prerelease nor a draft. The
// releases listing is trusted to be ordered newest first, so the first stable
// entry is the latest. Its tag name is returned with a leading "v" removed.
package latest

import (
	"context"
	"log/slog"
	"time"

	"github.com/nickromney-org/github-latest-stable-release/internal/config"
	"github.com/nickromney-org/github-latest-stable-release/internal/github"
	"github.com/nickromney-org/github-latest-stable-release/internal/release"
)

type (
	// Release represents a GitHub release
	Release = release.Release
	// Result is the outcome of a lookup
	Result = release.Result
	// RequestError reports a transport failure or an error status from the API
	RequestError = release.RequestError
	// Comparison describes how a current version relates to the latest stable release
	Comparison = release.Comparison
	// Kind classifies lookup failures
	Kind = release.Kind
)

var (
	ErrNoStableRelease   = release.ErrNoStableRelease
	ErrMalformedResponse = release.ErrMalformedResponse
	ErrMissingTag        = release.ErrMissingTag
)

const (
	KindRequestFailure  = release.KindRequestFailure
	KindNoStableRelease = release.KindNoStableRelease
	KindOther           = release.KindOther
)

// KindOf returns the failure kind of err
func KindOf(err error) Kind {
	return release.KindOf(err)
}

// Options configures a lookup
type Options struct {
	Token     string        // Optional, sent as "Authorization: token <Token>"
	APIURL    string        // Defaults to https://api.github.com/
	Timeout   time.Duration // Zero means no timeout
	UserAgent string
	Logger    *slog.Logger
}

// GetLatestStableRelease returns the version of the latest stable release of owner/repo
func GetLatestStableRelease(ctx context.Context, owner, repo, token string) (string, error) {
	result, err := Lookup(ctx, owner, repo, Options{Token: token})
	if err != nil {
		return "", err
	}
	return result.Version, nil
}

// Lookup returns the latest stable release of owner/repo along with its metadata
func Lookup(ctx context.Context, owner, repo string, opts Options) (*Result, error) {
	cfg := config.Config{
		Owner:   owner,
		Repo:    repo,
		Token:   opts.Token,
		APIURL:  opts.APIURL,
		Timeout: opts.Timeout,
	}
	if cfg.APIURL == "" {
		cfg.APIURL = config.DefaultAPIURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fetcher, err := newFetcher(cfg, opts.UserAgent, opts.Logger)
	if err != nil {
		return nil, err
	}

	return fetcher.LatestStable(ctx, owner, repo)
}

// newFetcher wires a GitHub client for cfg into a release fetcher
func newFetcher(cfg config.Config, userAgent string, logger *slog.Logger) (*release.Fetcher, error) {
	client, err := github.NewClient(cfg.Token,
		github.WithBaseURL(cfg.APIURL),
		github.WithTimeout(cfg.Timeout),
		github.WithUserAgent(userAgent),
		github.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return release.NewFetcher(client, logger), nil
}
