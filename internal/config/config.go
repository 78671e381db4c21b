package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultAPIURL is the public GitHub REST API root
	DefaultAPIURL = "https://api.github.com/"

	TokenEnvVar  = "GITHUB_TOKEN"   // optional credential
	APIURLEnvVar = "GITHUB_API_URL" // set by GitHub Actions, also used for GHES
)

// Config holds the settings for one lookup
type Config struct {
	Owner string // GitHub owner (e.g., "acme")
	Repo  string // GitHub repo (e.g., "widget")

	Token   string        // Empty for unauthenticated requests
	APIURL  string        // API root, DefaultAPIURL when unset
	Timeout time.Duration // Zero means no timeout
}

// FromEnv reads the credential and API root from the environment
func FromEnv(getenv func(string) string) Config {
	apiURL := strings.TrimSpace(getenv(APIURLEnvVar))
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	return Config{
		Token:  getenv(TokenEnvVar),
		APIURL: apiURL,
	}
}

// Validate checks if the configuration is valid.
// Owner and repo are passed through to the API as given.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", c.APIURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API URL %q: must be an absolute http(s) URL", c.APIURL)
	}

	return nil
}

// FullName returns the full repository name (owner/repo)
func (c Config) FullName() string {
	return fmt.Sprintf("%s/%s", c.Owner, c.Repo)
}

// ReleasesURL returns the releases listing endpoint for the repository
func (c Config) ReleasesURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/releases", strings.TrimSuffix(c.APIURL, "/"), c.Owner, c.Repo)
}
