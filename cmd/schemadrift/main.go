package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tordrt/schemadrift"
	"github.com/tordrt/schemadrift/internal/config"
	"github.com/tordrt/schemadrift/internal/errs"
	"github.com/tordrt/schemadrift/internal/logger"
	"github.com/tordrt/schemadrift/internal/report"
	"github.com/tordrt/schemadrift/internal/snapshot"
)

// Process exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitDrift       = 2
	exitUnsupported = 3
)

var errDriftDetected = errors.New("schema drift detected")

// binding ties a command line flag to a configuration key.
type binding struct {
	flag string
	key  string
}

var persistentBindings = []binding{
	{"host", "database.host"},
	{"port", "database.port"},
	{"user", "database.user"},
	{"password", "database.password"},
	{"database", "database.name"},
	{"tables", "tables"},
	{"exclude-tables", "exclude_tables"},
	{"store", "snapshot.store"},
	{"case-insensitive", "diff.case_insensitive"},
	{"ignore-column-order", "diff.ignore_column_order"},
	{"log-level", "log.level"},
	{"log-format", "log.format"},
}

var reportBindings = []binding{
	{"output", "report.output"},
	{"format", "report.format"},
	{"include-unchanged", "report.include_unchanged"},
	{"unchanged-columns", "report.unchanged_columns"},
	{"fail-on-drift", "report.fail_on_drift"},
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "schemadrift",
		Short: "Snapshot a MySQL schema and report drift against it",
		Long: `schemadrift captures the structure of a MySQL database (tables, columns, indexes
and constraints) into a versioned snapshot, and later compares the live schema
against that snapshot, reporting every difference.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default: ./schemadrift.yaml)")
	pf.StringP("host", "H", "localhost", "MySQL host")
	pf.IntP("port", "P", 3306, "MySQL port")
	pf.StringP("user", "u", "root", "MySQL user")
	pf.StringP("password", "p", "", "MySQL password")
	pf.StringP("database", "d", "", "Database (schema) to inspect")
	pf.StringSlice("tables", nil, "Only these tables (comma-separated)")
	pf.StringSlice("exclude-tables", nil, "Skip these tables (comma-separated)")
	pf.String("store", "file", "Snapshot store: file, file://dir, sqlite://path, postgres://..., minio://bucket")
	pf.Bool("case-insensitive", false, "Match identifiers case-insensitively")
	pf.Bool("ignore-column-order", false, "Do not report column reordering")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console or json")

	rootCmd.AddCommand(
		newCacheCmd(&configFile),
		newValidateCmd(&configFile),
		newDiffCmd(&configFile),
	)
	return rootCmd
}

func newCacheCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cache",
		Aliases: []string{"create"},
		Short:   "Capture the current schema into a snapshot",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd, *configFile, binding{"output", "snapshot.path"})
			if err != nil {
				return err
			}

			r, err := schemadrift.Open(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeRunner(r, log)

			s, err := r.Cache(cmd.Context(), cfg.Snapshot.Path)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cached %d tables of %s to %s\n", len(s.Tables), s.Database, cfg.Snapshot.Path)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", config.DefaultSnapshotKey, "Snapshot key to write")
	return cmd
}

func newValidateCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compare the live schema against a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd, *configFile, slices.Concat(reportBindings, []binding{{"input", "snapshot.path"}})...)
			if err != nil {
				return err
			}

			r, err := schemadrift.Open(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeRunner(r, log)

			res, err := r.Validate(cmd.Context(), cfg.Snapshot.Path)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), cfg, log, res)
		},
	}
	cmd.Flags().StringP("input", "i", config.DefaultSnapshotKey, "Snapshot key to compare against")
	addReportFlags(cmd.Flags())
	return cmd
}

func newDiffCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <baseline> <current>",
		Short: "Compare two stored snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd, *configFile, reportBindings...)
			if err != nil {
				return err
			}

			r, err := schemadrift.OpenOffline(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeRunner(r, log)

			res, err := r.CompareSnapshots(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), cfg, log, res)
		},
	}
	addReportFlags(cmd.Flags())
	return cmd
}

func addReportFlags(fs *pflag.FlagSet) {
	fs.StringP("output", "o", report.DefaultXLSXOutput, "Report file, or - for stdout")
	fs.StringP("format", "f", config.FormatXLSX, "Report format: xlsx, text or markdown")
	fs.Bool("include-unchanged", false, "List unchanged tables in the report")
	fs.Bool("unchanged-columns", false, "List every unchanged column too (implies --include-unchanged)")
	fs.Bool("fail-on-drift", false, "Exit with status 2 when drift is found")
}

// loadConfig resolves the configuration for cmd and builds its logger, which
// is also stored in the command's context. Persistent flags are always
// bound; extra binds the command's own flags.
func loadConfig(cmd *cobra.Command, configFile string, extra ...binding) (*config.Config, *logger.Logger, error) {
	l := config.NewLoader()
	for _, b := range slices.Concat(persistentBindings, extra) {
		if err := l.BindFlag(b.key, cmd.Flags().Lookup(b.flag)); err != nil {
			return nil, nil, err
		}
	}

	cfg, err := l.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	cmd.SetContext(log.WithContext(cmd.Context()))
	if used := l.ConfigFileUsed(); used != "" {
		log.Debugf("using config file %s", used)
	}
	return cfg, log, nil
}

func writeReport(stdout io.Writer, cfg *config.Config, log *logger.Logger, res *schemadrift.Result) error {
	rep := res.Report()
	rep.UnchangedColumns = cfg.Report.UnchangedColumns
	if err := export(stdout, cfg, log, rep); err != nil {
		return err
	}
	if cfg.Report.FailOnDrift && res.Diff.HasDrift() {
		return errDriftDetected
	}
	return nil
}

func export(stdout io.Writer, cfg *config.Config, log *logger.Logger, r report.Report) error {
	if cfg.Report.Format == config.FormatXLSX {
		if cfg.Report.Output == "-" {
			return report.NewXLSXExporter("", log).Write(stdout, r)
		}
		e := report.NewXLSXExporter(cfg.Report.Output, log)
		if err := e.Export(r); err != nil {
			return err
		}
		log.Infof("report written to %s", e.Path())
		return nil
	}

	w := stdout
	if out := cfg.Report.Output; out != "" && out != "-" && out != report.DefaultXLSXOutput {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Warnf("failed to close output file: %v", err)
			}
		}()
		w = f
	}

	var e report.Exporter
	switch cfg.Report.Format {
	case config.FormatMarkdown:
		e = report.NewMarkdownExporter(w)
	default:
		e = report.NewTextExporter(w)
	}
	return e.Export(r)
}

func closeRunner(r *schemadrift.Runner, log *logger.Logger) {
	if err := r.Close(); err != nil {
		log.Warnf("failed to close connections: %v", err)
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errDriftDetected):
		return exitDrift
	case snapshot.IsUnsupportedVersion(err):
		return exitUnsupported
	default:
		return exitError
	}
}

// hint suggests what to do after command failed with err. It returns ""
// when there is nothing useful to add.
func hint(command string, err error) string {
	switch {
	case errors.Is(err, errDriftDetected):
		return ""
	case errs.IsUnsupportedVersion(err), errs.IsCorruptSnapshot(err):
		return "Re-capture the baseline with 'schemadrift cache'."
	case errs.IsNotFound(err) && command == "cache":
		return "Check the --tables list against the database."
	case errs.IsNotFound(err):
		return "Snapshot not found; run 'schemadrift cache' first."
	case errs.IsConnectionFailed(err):
		return "Check that MySQL is reachable at --host and --port."
	case errs.IsPermissionDenied(err):
		return "Check the credentials and the grants of --user."
	case errs.IsTimeout(err):
		return "Raise database.connect_timeout or check the network."
	case errs.IsQueryFailed(err):
		return "Run again with --log-level debug for details."
	default:
		return ""
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err != nil {
		name, logCtx := rootCmd.Name(), ctx
		if cmd != nil && cmd.Context() != nil {
			name, logCtx = cmd.Name(), cmd.Context()
		}
		logger.FromContext(logCtx).ErrorWith("command failed", err, map[string]any{
			"command": name,
			"kind":    errs.KindOf(err).String(),
		})
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		if h := hint(name, err); h != "" {
			_, _ = fmt.Fprintln(stderr, h)
		}
	}
	return exitCode(err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
