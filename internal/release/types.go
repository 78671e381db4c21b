package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Release represents a GitHub release as returned by the releases listing
type Release struct {
	TagName     string
	Untagged    bool // tag_name absent from the response
	Name        string
	Prerelease  bool
	Draft       bool
	PublishedAt time.Time
	URL         string
}

// IsStable reports whether the release is neither a prerelease nor a draft
func (r Release) IsStable() bool {
	return !r.Prerelease && !r.Draft
}

// Result is the outcome of a latest stable release lookup
type Result struct {
	Owner   string
	Repo    string
	Version string          // tag name with a leading "v" removed
	Release Release         // the selected release
	Semver  *semver.Version // nil when Version is not a semantic version
}

// FullName returns owner/repo
func (r *Result) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Repo)
}

// MarshalJSON implements custom JSON marshaling
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Repository  string     `json:"repository"`
		Version     string     `json:"version"`
		TagName     string     `json:"tag_name"`
		Name        string     `json:"name,omitempty"`
		PublishedAt *time.Time `json:"published_at,omitempty"`
		URL         string     `json:"url,omitempty"`
		IsSemver    bool       `json:"is_semver"`
	}{
		Repository:  r.FullName(),
		Version:     r.Version,
		TagName:     r.Release.TagName,
		Name:        r.Release.Name,
		PublishedAt: timePtr(r.Release.PublishedAt),
		URL:         r.Release.URL,
		IsSemver:    r.Semver != nil,
	})
}

// Comparison describes how a current version relates to the latest stable release
type Comparison struct {
	Current         *semver.Version `json:"current_version"`
	Latest          *semver.Version `json:"latest_version"`
	IsLatest        bool            `json:"is_latest"`
	UpdateAvailable bool            `json:"update_available"`
}

// Compare parses current and compares it against the latest stable version
func (r *Result) Compare(current string) (*Comparison, error) {
	if r.Semver == nil {
		return nil, fmt.Errorf("latest version %q is not a semantic version", r.Version)
	}

	cur, err := semver.NewVersion(current)
	if err != nil {
		return nil, fmt.Errorf("invalid comparison version %q: %w", current, err)
	}

	return &Comparison{
		Current:         cur,
		Latest:          r.Semver,
		IsLatest:        !cur.LessThan(r.Semver),
		UpdateAvailable: cur.LessThan(r.Semver),
	}, nil
}

var (
	// ErrNoStableRelease is returned when no release is both non-prerelease and non-draft
	ErrNoStableRelease = errors.New("no stable releases found")

	// ErrMalformedResponse is returned when the releases body cannot be decoded
	ErrMalformedResponse = errors.New("malformed releases response")

	// ErrMissingTag is returned when the selected release carries no tag name
	ErrMissingTag = errors.New("release has no tag name")
)

// RequestError reports a transport failure or an error status from the API
type RequestError struct {
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *RequestError) Error() string {
	return "Failed to fetch releases: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Kind classifies lookup failures for reporting
type Kind string

const (
	KindRequestFailure  Kind = "request_failure"
	KindNoStableRelease Kind = "no_stable_release"
	KindOther           Kind = "other"
)

// KindOf returns the failure kind of err
func KindOf(err error) Kind {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return KindRequestFailure
	case errors.Is(err, ErrNoStableRelease):
		return KindNoStableRelease
	default:
		return KindOther
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
