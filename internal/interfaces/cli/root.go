// Package cli implements landlordctl, the operator and landlord command
// line for LandlordComply.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/client"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const envToken = "LANDLORD_TOKEN"

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Timeout      time.Duration
	ServerAddr   string
	Token        string
}

// CLIContext carries what subcommands share. Config and Client are built
// on first use so the calculators work without any configuration.
type CLIContext struct {
	Logger       logging.Logger
	OutputFormat string
	Timeout      time.Duration
	Deps         Dependencies

	opts *RootOptions

	cfgOnce sync.Once
	cfg     *config.Config
	cfgErr  error
}

// Config loads configuration from --config and LANDLORD_* variables.
func (c *CLIContext) Config() (*config.Config, error) {
	c.cfgOnce.Do(func() {
		c.cfg, c.cfgErr = c.Deps.LoadConfig(c.opts.ConfigPath)
	})
	return c.cfg, c.cfgErr
}

// Client returns an API client for --server, authenticated with --token.
func (c *CLIContext) Client() (*client.Client, error) {
	addr := c.opts.ServerAddr
	if addr == "" {
		addr = "http://localhost:8080"
	}
	token := c.opts.Token
	if token == "" {
		token = os.Getenv(envToken)
	}
	return client.NewClient(addr, token,
		client.WithTimeout(c.Timeout),
		client.WithUserAgent("landlordctl/"+Version),
		client.WithLogger(clientLogger{c.Logger}),
	)
}

// NewRootCommand builds landlordctl with deps backing the commands that
// reach Postgres. A zero Dependencies uses the real implementations.
func NewRootCommand(deps Dependencies) *cobra.Command {
	opts := &RootOptions{}
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "landlordctl",
		Short: "LandlordComply command line",
		Long: "landlordctl runs the security deposit calculators locally, manages the\n" +
			"database schema and jurisdiction rules, issues API tokens and works\n" +
			"disposition cases through the API server.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts, deps)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: environment only)")
	pf.StringVar(&opts.LogLevel, "log-level", logging.LevelWarn, "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "timeout for each command")
	pf.StringVar(&opts.ServerAddr, "server", "", "API server address (default: http://localhost:8080)")
	pf.StringVar(&opts.Token, "token", "", "API bearer token (default: $"+envToken+")")

	cmd.AddCommand(
		NewCalcCmd(),
		NewMigrateCmd(),
		NewRulesCmd(),
		NewTokenCmd(),
		NewCasesCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions, deps Dependencies) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json", "table":
	default:
		return errors.InvalidParam(fmt.Sprintf("unknown output format %q; expected text, json or table", opts.OutputFormat))
	}
	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	cliCtx := &CLIContext{
		Logger:       logger,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Timeout:      opts.Timeout,
		Deps:         deps,
		opts:         opts,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initLogger writes console-format logs to stderr so stdout stays parseable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := strings.ToLower(opts.LogLevel)
	switch level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return nil, errors.InvalidParam(fmt.Sprintf("unknown log level %q", opts.LogLevel))
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("command was not started from the root command")
	}
	return cliCtx, nil
}

// commandContext bounds one command by --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if cliCtx, err := GetCLIContext(cmd); err == nil && cliCtx.Timeout > 0 {
		return context.WithTimeout(ctx, cliCtx.Timeout)
	}
	return context.WithCancel(ctx)
}

// Execute runs landlordctl with the real dependencies.
func Execute() error {
	rootCmd := NewRootCommand(Dependencies{})
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult writes data in the --output format.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "text"
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}
	w := cmd.OutOrStdout()
	switch format {
	case "json":
		return printJSON(w, data)
	case "table":
		if tp, ok := data.(tableProvider); ok {
			_, err := io.WriteString(w, FormatTable(tp.TableHeaders(), tp.TableRows()))
			return err
		}
		return printText(w, data)
	default:
		return printText(w, data)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// printText prefers a Stringer, then a two-column key/value table, then %+v.
func printText(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(w, v)
	case fmt.Stringer:
		fmt.Fprintln(w, v.String())
	case tableProvider:
		fmt.Fprint(w, FormatTable(v.TableHeaders(), v.TableRows()))
	default:
		fmt.Fprintf(w, "%+v\n", v)
	}
	return nil
}

// PrintError writes err to stderr. API errors print their code.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s: %s\n", apiErr.Code, apiErr.Message)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// FormatTable renders headers and rows as an aligned text table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(val)
			} else {
				sb.WriteString(padRight(val, widths[i]))
			}
		}
		sb.WriteString("\n")
	}
	writeRow(headers)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// clientLogger adapts logging.Logger to the printf-style client.Logger.
type clientLogger struct {
	l logging.Logger
}

func (c clientLogger) Debugf(format string, args ...interface{}) {
	c.l.Debug(fmt.Sprintf(format, args...))
}

func (c clientLogger) Infof(format string, args ...interface{}) {
	c.l.Info(fmt.Sprintf(format, args...))
}

func (c clientLogger) Errorf(format string, args ...interface{}) {
	c.l.Error(fmt.Sprintf(format, args...))
}
