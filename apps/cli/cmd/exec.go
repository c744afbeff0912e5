package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/restexec/packages/core/config"
	"github.com/abdul-hamid-achik/restexec/packages/core/env"
	"github.com/abdul-hamid-achik/restexec/packages/core/parser"
	"github.com/abdul-hamid-achik/restexec/packages/core/runner"
	"github.com/abdul-hamid-achik/restexec/packages/history"
	"github.com/abdul-hamid-achik/restexec/packages/output"
	"github.com/abdul-hamid-achik/restexec/packages/rest"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec <file|directory>...",
	Short: "Execute the requests declared in request files",
	Long: `Execute the requests declared in YAML request files against a base URL.

Examples:
  restexec exec users.yaml
  restexec exec users.yaml --base-url http://localhost:8080
  restexec exec ./requests/ --name "create*" --bail
  restexec exec users.yaml --repeat 50 --rate 10
  restexec exec users.yaml --history .restexec.db -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: execCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	baseURLFlag      string
	configFlag       string
	envFileFlag      string
	nameFlag         string
	headerFlags      []string
	timeoutFlag      string
	maxRedirectsFlag int
	noRedirectsFlag  bool
	insecureFlag     bool
	proxyFlag        string
	rateFlag         float64
	repeatFlag       int
	bailFlag         bool
	historyFlag      string
	watchFlag        bool
	outputFlag       string
	outputFileFlag   string
	includeBodyFlag  bool
	noColorFlag      bool
	verboseFlag      int // 0=off, 1=-v, 2=-vv
)

func init() {
	// Core flags
	execCmd.Flags().StringVarP(&baseURLFlag, "base-url", "b", getEnvString("RESTEXEC_BASE_URL", ""), "Base URL resources are resolved against (env: RESTEXEC_BASE_URL)")
	execCmd.Flags().StringVar(&configFlag, "config", getEnvString("RESTEXEC_CONFIG", ""), "Path to config file (env: RESTEXEC_CONFIG)")
	execCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("RESTEXEC_ENV_FILE", ""), "Path to .env file for variable interpolation (env: RESTEXEC_ENV_FILE)")
	execCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only requests matching name pattern")
	execCmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "Default header sent with every request (\"Name: value\", repeatable)")

	// Output flags
	execCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v prints exchanges, -vv adds debug logs)")
	execCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("RESTEXEC_NO_COLOR", false), "Disable colored output (env: RESTEXEC_NO_COLOR)")
	execCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("RESTEXEC_OUTPUT", ""), "Output format: console, json (env: RESTEXEC_OUTPUT)")
	execCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("RESTEXEC_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: RESTEXEC_OUTPUT_FILE)")
	execCmd.Flags().BoolVar(&includeBodyFlag, "include-body", false, "Include response bodies in JSON output")

	// Execution flags
	execCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("RESTEXEC_BAIL", false), "Stop on first failure (env: RESTEXEC_BAIL)")
	execCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("RESTEXEC_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: RESTEXEC_TIMEOUT)")
	execCmd.Flags().IntVar(&repeatFlag, "repeat", getEnvInt("RESTEXEC_REPEAT", 0), "Execute every request N times and report latency percentiles (env: RESTEXEC_REPEAT)")
	execCmd.Flags().Float64VarP(&rateFlag, "rate", "r", getEnvFloat("RESTEXEC_RATE", 0), "Maximum requests per second, 0 for unlimited (env: RESTEXEC_RATE)")
	execCmd.Flags().StringVar(&historyFlag, "history", getEnvString("RESTEXEC_HISTORY", ""), "Record exchanges in a SQLite database (env: RESTEXEC_HISTORY)")
	execCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run requests")

	// Network flags
	execCmd.Flags().IntVar(&maxRedirectsFlag, "max-redirects", getEnvInt("RESTEXEC_MAX_REDIRECTS", 0), "Maximum redirects to follow (env: RESTEXEC_MAX_REDIRECTS)")
	execCmd.Flags().BoolVar(&noRedirectsFlag, "no-redirects", false, "Do not follow redirects")
	execCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("RESTEXEC_PROXY", ""), "Proxy URL for HTTP requests (env: RESTEXEC_PROXY)")
	execCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("RESTEXEC_INSECURE", false), "Disable SSL certificate validation (env: RESTEXEC_INSECURE)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// loadExecConfig merges the config file with command line flags; flags win.
func loadExecConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	overrides := &config.Config{
		BaseURL: baseURLFlag,
		Proxy:   proxyFlag,
		Rate:    rateFlag,
		History: historyFlag,
		Output:  outputFlag,
	}
	if timeoutFlag != "" {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		overrides.Timeout = int(timeout.Milliseconds())
	}
	if maxRedirectsFlag > 0 {
		overrides.MaxRedirects = maxRedirectsFlag
	}
	if noRedirectsFlag {
		overrides.FollowRedirects = config.BoolPtr(false)
	}
	if insecureFlag {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	if noColorFlag {
		overrides.NoColor = config.BoolPtr(true)
	}
	if verboseFlag > 0 {
		overrides.Verbose = config.BoolPtr(true)
	}
	if len(headerFlags) > 0 {
		overrides.Headers = make(map[string]string, len(headerFlags))
		for _, h := range headerFlags {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
			}
			overrides.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	return cfg.Merge(overrides), nil
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verboseFlag > 1 {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newClient builds the rest client described by cfg.
func newClient(cfg *config.Config, logger *slog.Logger) (*rest.Client, error) {
	transportOpts := []rest.TransportOption{
		rest.WithValidateSSL(cfg.GetValidateSSL()),
	}
	if cfg.Timeout > 0 {
		transportOpts = append(transportOpts, rest.WithTimeout(cfg.TimeoutDuration()))
	}
	if cfg.MaxRedirects > 0 {
		transportOpts = append(transportOpts, rest.WithMaxRedirects(cfg.MaxRedirects))
	}
	if !cfg.GetFollowRedirects() {
		transportOpts = append(transportOpts, rest.WithMaxRedirects(0))
	}
	if cfg.Proxy != "" {
		if err := rest.ValidateURL(cfg.Proxy); err != nil {
			return nil, fmt.Errorf("invalid proxy: %w", err)
		}
		transportOpts = append(transportOpts, rest.WithProxy(cfg.Proxy))
	}

	transport := rest.RateLimited(rest.NewHTTPTransport(transportOpts...), rest.NewLimiter(cfg.Rate))

	return rest.NewClient(transport,
		rest.WithBaseURL(cfg.BaseURL),
		rest.WithDefaultHeaders(cfg.Headers),
		rest.WithLogger(logger),
	)
}

func newFormatter(cfg *config.Config, w io.Writer) Formatter {
	switch strings.ToLower(cfg.Output) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w), output.JSONWithBody(includeBodyFlag))
	default: // "console"
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(cfg.GetVerbose()),
			output.WithNoColor(cfg.GetNoColor()),
		)
	}
}

func execCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadExecConfig()
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	logger := newLogger(cmd.ErrOrStderr())

	var out io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		out = f
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	runnerOpts := []runner.Option{runner.WithLogger(logger)}
	if cfg.History != "" {
		store, err := history.Open(cfg.History)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		defer store.Close()
		runnerOpts = append(runnerOpts, runner.WithHistory(store))
	}

	var variables map[string]string
	if envFileFlag != "" {
		variables, err = env.LoadDotEnv(envFileFlag)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
	}

	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withExitCode(ExitUsageError, errors.New("no .yaml or .yml request files found"))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// only an explicit flag outranks a base URL declared in a file; the config
	// file value is the client's fallback
	runCfg := &runner.Config{
		BaseURL:    baseURLFlag,
		Variables:  variables,
		Bail:       bailFlag,
		NameFilter: nameFlag,
		Repeat:     repeatFlag,
	}

	runAll := func() int {
		formatter := newFormatter(cfg, out)
		formatter.FormatHeader(version)

		code := ExitSuccess
		startTime := time.Now()
		for _, file := range files {
			// a fresh runner per file keeps captures from leaking across files
			r := runner.NewRunner(client, runCfg, runnerOpts...)
			result, err := r.RunFile(ctx, file)
			if err != nil {
				formatter.FormatError(err)
				var parseErr *parser.ParseError
				if errors.As(err, &parseErr) {
					code = max(code, ExitParseError)
				} else {
					code = max(code, ExitTestFailure)
				}
				if bailFlag || ctx.Err() != nil {
					break
				}
				continue
			}

			formatter.FormatResult(result)
			code = max(code, exitCodeFor(result))

			if bailFlag && !result.Success() {
				break
			}
		}

		if flushable, ok := formatter.(Flushable); ok {
			if err := flushable.Flush(time.Since(startTime)); err != nil {
				logger.Error("output.flush_failed", "error", err)
			}
		}
		return code
	}

	code := runAll()
	if !watchFlag {
		if code != ExitSuccess {
			return withExitCode(code, errors.New("one or more requests failed"))
		}
		return nil
	}

	return watch(ctx, cmd, files, runAll)
}

// exitCodeFor maps a file's result to the most specific exit code: network
// failures outrank expectation failures.
func exitCodeFor(result *runner.RunResult) int {
	code := ExitSuccess
	for _, r := range result.Results {
		switch {
		case r.Skipped || r.Passed:
		case r.Error != nil && rest.IsKind(r.Error, rest.KindExecution):
			code = max(code, ExitNetworkError)
		default:
			code = max(code, ExitTestFailure)
		}
	}
	return code
}

func watch(ctx context.Context, cmd *cobra.Command, files []string, run func() int) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && parser.IsRequestFile(event.Name) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				name := event.Name
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running requests...\n\n", name)
					run()
					fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && parser.IsRequestFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if parser.IsRequestFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}
