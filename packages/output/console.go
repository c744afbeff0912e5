package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/restexec/packages/core/runner"
	"github.com/abdul-hamid-achik/restexec/packages/history"
	"github.com/abdul-hamid-achik/restexec/packages/stats"
	"github.com/fatih/color"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "<none>"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose prints every exchange as an HTTP message.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+result.File))
	fmt.Fprintf(f.writer, "\n")

	for _, r := range result.Results {
		if r.Skipped {
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" && r.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		if r.Error != nil && r.Response == nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Name, red(fmt.Sprintf("(%v)", r.Error)))
			continue
		}

		symbol := green("✓")
		if !r.Passed {
			symbol = red("✗")
		}

		status := ""
		if r.Response != nil {
			status = fmt.Sprintf("%d ", r.Response.StatusCode)
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.Name, cyan(fmt.Sprintf("(%s%dms)", status, r.Duration.Milliseconds())))

		if f.verbose && r.Response != nil {
			f.writeMessage(r)
		}

		if r.Error != nil {
			fmt.Fprintf(f.writer, "    %s %v\n", red("→"), r.Error)
		}

		if !r.Passed {
			for _, a := range r.Assertions {
				if !a.Passed {
					fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), a.Subject, a.Operator)
					fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
					fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
					if a.Message != "" {
						fmt.Fprintf(f.writer, "      %s\n", a.Message)
					}
				}
			}
		}

		if r.Stats != nil {
			f.writeStats(r.Stats)
		}

		if f.verbose && len(r.Captures) > 0 {
			fmt.Fprintf(f.writer, "    Captures:\n")
			names := make([]string, 0, len(r.Captures))
			for name := range r.Captures {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(f.writer, "      %s = %v\n", name, r.Captures[name])
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Requests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:     %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) writeMessage(r *runner.RequestResult) {
	dim := color.New(color.Faint).SprintFunc()
	message := strings.TrimRight(r.Response.HTTPMessage(), "\r\n")
	for _, line := range strings.Split(message, "\n") {
		fmt.Fprintf(f.writer, "    %s\n", dim(strings.TrimRight(line, "\r")))
	}
}

func (f *ConsoleFormatter) writeStats(s *stats.Summary) {
	fmt.Fprintf(f.writer, "    Runs: %d (%d errors, %.1f rps)\n", s.Count, s.Errors, s.RPS)
	fmt.Fprintf(f.writer, "    Latency: min %s  mean %s  p50 %s  p95 %s  p99 %s  max %s\n",
		s.Min, s.Mean, s.P50, s.P95, s.P99, s.Max)
}

// FormatHistory prints recorded exchanges, newest first.
func (f *ConsoleFormatter) FormatHistory(entries []*history.Entry) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if len(entries) == 0 {
		fmt.Fprintf(f.writer, "No recorded exchanges\n")
		return
	}

	for _, e := range entries {
		status := fmt.Sprintf("%d", e.Status)
		switch {
		case e.Failed():
			status = red("ERR")
		case e.Status >= 400:
			status = red(status)
		case e.Status >= 300:
			status = yellow(status)
		default:
			status = green(status)
		}

		fmt.Fprintf(f.writer, "%5d  %s  %-7s %-40s %s %6dms  %s\n",
			e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Method, e.Resource,
			status, e.DurationMs, e.TransactionID)
		if e.Failed() && f.verbose {
			fmt.Fprintf(f.writer, "       %s %s\n", red(e.ErrorKind+":"), e.Error)
		}
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("restexec"), version)
}
