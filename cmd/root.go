package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	colour "github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/nickromney-org/github-latest-stable-release/internal/config"
	"github.com/nickromney-org/github-latest-stable-release/pkg/latest"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via SetVersionInfo from main)
	appVersion = "dev"
	buildTime  = "unknown"
	gitCommit  = "unknown"

	// Colours for output
	green  = colour.New(colour.FgGreen, colour.Bold)
	yellow = colour.New(colour.FgYellow, colour.Bold)
	cyan   = colour.New(colour.FgCyan)
)

// errUsage is returned after the usage message has been printed
var errUsage = errors.New("missing arguments")

type options struct {
	token       string
	envToken    string // GITHUB_TOKEN; never the flag default, help prints defaults
	apiURL      string
	timeout     time.Duration
	compare     string
	verbose     bool
	jsonOutput  bool
	showVersion bool
}

// SetVersionInfo sets the version information from the main package
func SetVersionInfo(version, build, commit string) {
	appVersion = version
	buildTime = build
	gitCommit = commit
}

// Execute runs the command line and reports failures on stderr
func Execute() error {
	return execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	if args == nil {
		// cobra falls back to os.Args for a nil slice
		args = []string{}
	}

	rootCmd := newRootCmd(getenv)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errUsage) {
		errorColour(stderr).Fprintf(stderr, "Error: %v\n", err)
	}
	return err
}

// errorColour follows the terminal state of w rather than of stdout
func errorColour(w io.Writer) *colour.Color {
	c := colour.New(colour.FgRed, colour.Bold)
	if f, ok := w.(*os.File); ok && isTerminal(f) && os.Getenv("NO_COLOR") == "" {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newRootCmd builds the root command. The environment is read once here.
func newRootCmd(getenv func(string) string) *cobra.Command {
	env := config.FromEnv(getenv)
	opts := &options{envToken: env.Token}

	rootCmd := &cobra.Command{
		Use:   "latest-stable-release <repo_owner> <repo_name>",
		Short: "Print the latest stable release version of a GitHub repository",
		Long: `Print the version of the latest stable release of a GitHub repository.

Prereleases and drafts are skipped. The first remaining release in GitHub's
listing is taken as the latest, and a leading "v" is removed from its tag.`,
		Example: `  # Latest stable version
  latest-stable-release acme widget

  # Authenticated, with a timeout
  GITHUB_TOKEN=ghp_xxx latest-stable-release acme widget --timeout 10s

  # Compare against the version you run
  latest-stable-release acme widget -c 3.0.2

  # JSON output for automation
  latest-stable-release acme widget --json`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args, opts)
			if err != nil && opts.jsonOutput && !errors.Is(err, errUsage) {
				outputErrorJSON(cmd.OutOrStdout(), err)
			}
			return err
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.token, "token", "t", "", "GitHub token (or GITHUB_TOKEN env var)")
	flags.StringVar(&opts.apiURL, "api-url", env.APIURL, "GitHub API root (or GITHUB_API_URL env var)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "request timeout, 0 waits indefinitely")
	flags.StringVarP(&opts.compare, "compare", "c", "", "version to compare against (e.g., 3.0.2)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
	flags.BoolVar(&opts.showVersion, "version", false, "show version information")

	return rootCmd
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	out := cmd.OutOrStdout()

	if opts.showVersion {
		fmt.Fprintf(out, "latest-stable-release %s\n", appVersion)
		fmt.Fprintf(out, "Build time: %s\n", buildTime)
		fmt.Fprintf(out, "Git commit: %s\n", gitCommit)
		return nil
	}

	if len(args) < 2 {
		fmt.Fprint(out, cmd.UsageString())
		return errUsage
	}

	token := opts.envToken
	if cmd.Flags().Changed("token") {
		token = opts.token
	}

	cfg := config.Config{
		Owner:   args[0],
		Repo:    args[1],
		Token:   token,
		APIURL:  opts.apiURL,
		Timeout: opts.timeout,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)
	logger.Debug("looking up latest stable release",
		"repository", cfg.FullName(),
		"url", cfg.ReleasesURL(),
		"authenticated", cfg.Token != "",
	)

	result, err := latest.Lookup(cmd.Context(), cfg.Owner, cfg.Repo, latest.Options{
		Token:     cfg.Token,
		APIURL:    cfg.APIURL,
		Timeout:   cfg.Timeout,
		UserAgent: "latest-stable-release/" + appVersion,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	var comparison *latest.Comparison
	if opts.compare != "" {
		comparison, err = result.Compare(opts.compare)
		if err != nil {
			return err
		}
	}

	if opts.jsonOutput {
		return outputJSON(out, result, comparison)
	}

	return outputTerminal(out, result, comparison, opts.verbose)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func outputJSON(w io.Writer, result *latest.Result, comparison *latest.Comparison) error {
	data, err := json.MarshalIndent(struct {
		Release    *latest.Result     `json:"release"`
		Comparison *latest.Comparison `json:"comparison,omitempty"`
	}{
		Release:    result,
		Comparison: comparison,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func outputErrorJSON(w io.Writer, err error) {
	data, _ := json.MarshalIndent(struct {
		Error string      `json:"error"`
		Kind  latest.Kind `json:"kind"`
	}{
		Error: err.Error(),
		Kind:  latest.KindOf(err),
	}, "", "  ")
	fmt.Fprintln(w, string(data))
}

func outputTerminal(w io.Writer, result *latest.Result, comparison *latest.Comparison, verbose bool) error {
	// Always print the version first (for script compatibility)
	fmt.Fprintln(w, result.Version)

	if comparison != nil {
		fmt.Fprintln(w)
		printComparison(w, comparison)
	}

	if verbose {
		fmt.Fprintln(w)
		printDetails(w, result, time.Now())
	}

	return nil
}

func printComparison(w io.Writer, comparison *latest.Comparison) {
	if comparison.UpdateAvailable {
		yellow.Fprintf(w, "⚠️  Update available: %s → %s\n", comparison.Current, comparison.Latest)
		return
	}
	green.Fprintf(w, "✅ Version %s is up to date (latest: %s)\n", comparison.Current, comparison.Latest)
}

func printDetails(w io.Writer, result *latest.Result, now time.Time) {
	cyan.Fprintln(w, "📦 Release Details")
	cyan.Fprintln(w, "─────────────────────────────────────")

	fmt.Fprintf(w, "  Repository:  %s\n", result.FullName())
	fmt.Fprintf(w, "  Tag:         %s\n", result.Release.TagName)
	if result.Release.Name != "" {
		fmt.Fprintf(w, "  Name:        %s\n", result.Release.Name)
	}
	fmt.Fprintf(w, "  Released:    %s\n", formatReleased(result.Release.PublishedAt, now))
	if result.Release.URL != "" {
		fmt.Fprintf(w, "  URL:         %s\n", result.Release.URL)
	}
	if result.Semver == nil {
		fmt.Fprintf(w, "  Semver:      no\n")
	} else {
		fmt.Fprintf(w, "  Semver:      yes\n")
	}
}
