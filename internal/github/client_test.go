package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/nickromney-org/github-latest-stable-release/internal/release"
)

const releasesBody = `[
  {"tag_name":"v3.2.0-rc1","name":"3.2.0 RC1","prerelease":true,"draft":false,"published_at":"2024-07-30T10:00:00Z","html_url":"https://github.com/acme/widget/releases/tag/v3.2.0-rc1"},
  {"tag_name":"v3.1.0","name":"3.1.0","prerelease":false,"draft":false,"published_at":"2024-07-25T10:00:00Z","html_url":"https://github.com/acme/widget/releases/tag/v3.1.0"}
]`

// newTestServer serves handler and returns a client pointed at it
func newTestServer(t *testing.T, token string, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(token, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		opts    []Option
		wantURL string
		wantErr bool
	}{
		{
			name:    "client with token",
			token:   "ghp_test123",
			wantURL: "https://api.github.com/",
		},
		{
			name:    "client without token",
			token:   "",
			wantURL: "https://api.github.com/",
		},
		{
			name:    "enterprise base URL gets trailing slash",
			opts:    []Option{WithBaseURL("https://github.example.com/api/v3")},
			wantURL: "https://github.example.com/api/v3/",
		},
		{
			name:    "invalid scheme",
			opts:    []Option{WithBaseURL("ftp://example.com")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.token, tt.opts...)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.gh == nil {
				t.Fatal("client.gh is nil")
			}
			if client.BaseURL() != tt.wantURL {
				t.Errorf("BaseURL() = %v, want %v", client.BaseURL(), tt.wantURL)
			}
		})
	}
}

func TestListReleases(t *testing.T) {
	var gotPath, gotQuery, gotMethod string
	client := newTestServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(releasesBody))
	})

	releases, err := client.ListReleases(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodGet {
		t.Errorf("method = %s, want GET", gotMethod)
	}
	if gotPath != "/repos/acme/widget/releases" {
		t.Errorf("path = %s, want /repos/acme/widget/releases", gotPath)
	}
	if gotQuery != "" {
		t.Errorf("query = %q, want no pagination parameters", gotQuery)
	}

	if len(releases) != 2 {
		t.Fatalf("got %d releases, want 2", len(releases))
	}

	rc := releases[0]
	if rc.TagName != "v3.2.0-rc1" || !rc.Prerelease || rc.Draft {
		t.Errorf("unexpected first release: %+v", rc)
	}

	stable := releases[1]
	if stable.TagName != "v3.1.0" || stable.Prerelease || stable.Draft {
		t.Errorf("unexpected second release: %+v", stable)
	}
	if stable.URL != "https://github.com/acme/widget/releases/tag/v3.1.0" {
		t.Errorf("URL = %s", stable.URL)
	}
	if !stable.PublishedAt.Equal(time.Date(2024, 7, 25, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedAt = %v", stable.PublishedAt)
	}
}

func TestListReleases_PrereleaseWithoutDraftFlag(t *testing.T) {
	client := newTestServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"tag_name":"v2.0.0-rc1","prerelease":true},{"tag_name":"v1.0.0","prerelease":false,"draft":false}]`))
	})

	releases, err := client.ListReleases(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stable := release.FilterStable(releases)
	if len(stable) != 1 || stable[0].TagName != "v1.0.0" {
		t.Errorf("stable releases = %+v, want only v1.0.0", stable)
	}
}

func TestListReleases_EmptyArray(t *testing.T) {
	client := newTestServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	releases, err := client.ListReleases(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(releases) != 0 {
		t.Errorf("got %d releases, want 0", len(releases))
	}
}

func TestListReleases_AuthorizationHeader(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "with token", token: "ghp_test123", want: "token ghp_test123"},
		{name: "without token", token: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			client := newTestServer(t, tt.token, func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				w.Write([]byte("[]"))
			})

			if _, err := client.ListReleases(context.Background(), "acme", "widget"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Authorization = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListReleases_UserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	client, err := NewClient("", WithBaseURL(server.URL), WithUserAgent("latest-stable-release/test"))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.ListReleases(context.Background(), "acme", "widget"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "latest-stable-release/test" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestListReleases_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   release.Kind
		wantStatus int
		wantErr    error
	}{
		{
			name:       "not found",
			status:     http.StatusNotFound,
			body:       `{"message":"Not Found"}`,
			wantKind:   release.KindRequestFailure,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "server error",
			status:     http.StatusBadGateway,
			body:       `{"message":"Bad Gateway"}`,
			wantKind:   release.KindRequestFailure,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:     "malformed json",
			status:   http.StatusOK,
			body:     `not json`,
			wantKind: release.KindOther,
			wantErr:  release.ErrMalformedResponse,
		},
		{
			name:     "object instead of array",
			status:   http.StatusOK,
			body:     `{"tag_name":"v1.0.0"}`,
			wantKind: release.KindOther,
			wantErr:  release.ErrMalformedResponse,
		},
		{
			name:     "missing prerelease flag",
			status:   http.StatusOK,
			body:     `[{"tag_name":"v1.0.0","draft":false}]`,
			wantKind: release.KindOther,
			wantErr:  release.ErrMalformedResponse,
		},
		{
			name:     "missing draft flag",
			status:   http.StatusOK,
			body:     `[{"tag_name":"v1.0.0","prerelease":false}]`,
			wantKind: release.KindOther,
			wantErr:  release.ErrMalformedResponse,
		},
		{
			name:     "empty body",
			status:   http.StatusOK,
			body:     ``,
			wantKind: release.KindOther,
			wantErr:  release.ErrMalformedResponse,
		},
		{
			name:     "null body",
			status:   http.StatusOK,
			body:     `null`,
			wantKind: release.KindOther,
			wantErr:  release.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, "", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.ListReleases(context.Background(), "acme", "widget")
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			if got := release.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %s, want %s (err: %v)", got, tt.wantKind, err)
			}

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantStatus != 0 {
				var reqErr *release.RequestError
				if !errors.As(err, &reqErr) {
					t.Fatalf("expected RequestError, got %T", err)
				}
				if reqErr.StatusCode != tt.wantStatus {
					t.Errorf("StatusCode = %d, want %d", reqErr.StatusCode, tt.wantStatus)
				}
				if !strings.HasPrefix(err.Error(), "Failed to fetch releases: ") {
					t.Errorf("message = %q", err.Error())
				}
			}
		})
	}
}

func TestListReleases_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client, err := NewClient("", WithBaseURL(baseURL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.ListReleases(context.Background(), "acme", "widget")

	var reqErr *release.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %T: %v", err, err)
	}
	if reqErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", reqErr.StatusCode)
	}
}

func TestListReleases_Timeout(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()
	defer close(done)

	client, err := NewClient("", WithBaseURL(server.URL), WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.ListReleases(context.Background(), "acme", "widget")
	if release.KindOf(err) != release.KindRequestFailure {
		t.Errorf("KindOf() = %s, want %s (err: %v)", release.KindOf(err), release.KindRequestFailure, err)
	}
}

func TestParseRelease(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name         string
		release      *gh.RepositoryRelease
		wantErr      bool
		wantTag      string
		wantUntagged bool
	}{
		{
			name: "stable release",
			release: &gh.RepositoryRelease{
				TagName:     gh.String("v2.329.0"),
				Prerelease:  gh.Bool(false),
				Draft:       gh.Bool(false),
				PublishedAt: &gh.Timestamp{Time: now},
			},
			wantTag: "v2.329.0",
		},
		{
			name: "missing tag name is kept for selection",
			release: &gh.RepositoryRelease{
				Prerelease: gh.Bool(false),
				Draft:      gh.Bool(false),
			},
			wantTag:      "",
			wantUntagged: true,
		},
		{
			name: "empty tag name",
			release: &gh.RepositoryRelease{
				TagName:    gh.String(""),
				Prerelease: gh.Bool(false),
				Draft:      gh.Bool(false),
			},
			wantTag: "",
		},
		{
			name: "prerelease without draft flag",
			release: &gh.RepositoryRelease{
				TagName:    gh.String("v2.0.0-rc1"),
				Prerelease: gh.Bool(true),
			},
			wantTag: "v2.0.0-rc1",
		},
		{
			name: "stable without draft flag",
			release: &gh.RepositoryRelease{
				TagName:    gh.String("v2.0.0"),
				Prerelease: gh.Bool(false),
			},
			wantErr: true,
		},
		{
			name:    "nil release",
			release: nil,
			wantErr: true,
		},
		{
			name: "missing flags",
			release: &gh.RepositoryRelease{
				TagName: gh.String("v2.329.0"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseRelease(tt.release)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.TagName != tt.wantTag {
				t.Errorf("TagName = %q, want %q", r.TagName, tt.wantTag)
			}
			if r.Untagged != tt.wantUntagged {
				t.Errorf("Untagged = %v, want %v", r.Untagged, tt.wantUntagged)
			}
		})
	}
}
