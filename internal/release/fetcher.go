package release

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Lister defines the interface for listing a repository's releases
type Lister interface {
	ListReleases(ctx context.Context, owner, repo string) ([]Release, error)
}

// Fetcher looks up the latest stable release of a repository
type Fetcher struct {
	lister Lister
	logger *slog.Logger
}

// NewFetcher creates a new fetcher. A nil logger discards log output.
func NewFetcher(lister Lister, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{
		lister: lister,
		logger: logger,
	}
}

// LatestStable returns the newest stable release of owner/repo.
// The listing is trusted to be ordered newest first.
func (f *Fetcher) LatestStable(ctx context.Context, owner, repo string) (*Result, error) {
	releases, err := f.lister.ListReleases(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("listed releases", "owner", owner, "repo", repo, "count", len(releases))

	latest, err := SelectLatestStable(releases)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Owner:   owner,
		Repo:    repo,
		Version: NormalizeTag(latest.TagName),
		Release: latest,
	}

	if ver, err := semver.NewVersion(result.Version); err == nil {
		result.Semver = ver
	} else {
		f.logger.Debug("version is not semver", "version", result.Version, "error", err)
	}

	f.logger.Debug("selected latest stable release", "tag", latest.TagName, "version", result.Version)

	return result, nil
}

// FilterStable keeps releases that are neither prereleases nor drafts, in input order
func FilterStable(releases []Release) []Release {
	var stable []Release
	for _, r := range releases {
		if r.IsStable() {
			stable = append(stable, r)
		}
	}
	return stable
}

// SelectLatestStable returns the first stable release in the list
func SelectLatestStable(releases []Release) (Release, error) {
	stable := FilterStable(releases)
	if len(stable) == 0 {
		return Release{}, ErrNoStableRelease
	}

	latest := stable[0]
	if latest.Untagged {
		return Release{}, fmt.Errorf("%w (release %q)", ErrMissingTag, latest.Name)
	}

	return latest, nil
}

// NormalizeTag removes a single leading lowercase "v"
func NormalizeTag(tag string) string {
	return strings.TrimPrefix(tag, "v")
}
