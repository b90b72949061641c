// Command importer runs the activation import pipeline from the shell
// against the configured storage.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"activation-backend/internal/app"
	"activation-backend/internal/config"
	"activation-backend/internal/models"
	"activation-backend/internal/services"
	"activation-backend/internal/timeutil"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	exitUsage   = 2
	exitFailure = 1
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(exitFailure)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "importer",
		Short:         "Stage and promote activation spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Config file path")

	withApp := func(run func(ctx context.Context, a *app.App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return withCode(exitUsage, err)
			}
			cfg.Log.Format = "text"
			logger := app.NewLogger(cfg, os.Stderr)
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd.Context(), a, args)
		}
	}

	root.AddCommand(
		newPreviewCmd(withApp),
		newUploadCmd(withApp),
		newPromoteCmd(withApp),
		newRunsCmd(withApp),
		newExportCmd(withApp),
		newExpireCmd(withApp),
		newReferencesCmd(withApp),
	)
	return root
}

type appRunner func(run func(ctx context.Context, a *app.App, args []string) error) func(*cobra.Command, []string) error

type windowFlags struct {
	mode  string
	start string
	end   string
}

func (f *windowFlags) register(cmd *cobra.Command, modeDefault string) {
	cmd.Flags().StringVar(&f.mode, "mode", modeDefault, "Import mode: replace or incremental")
	cmd.Flags().StringVar(&f.start, "start", "", "Replace window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "Replace window end (YYYY-MM-DD)")
}

func (f *windowFlags) parse() (models.ImportMode, *models.DateRange, error) {
	var mode models.ImportMode
	if f.mode != "" {
		m, ok := models.ParseImportMode(f.mode)
		if !ok {
			return "", nil, withCode(exitUsage, fmt.Errorf("invalid --mode %q", f.mode))
		}
		mode = m
	}
	if f.start == "" && f.end == "" {
		return mode, nil, nil
	}
	start, err := timeutil.ParseDate(f.start)
	if err != nil {
		return "", nil, withCode(exitUsage, fmt.Errorf("invalid --start: %w", err))
	}
	end, err := timeutil.ParseDate(f.end)
	if err != nil {
		return "", nil, withCode(exitUsage, fmt.Errorf("invalid --end: %w", err))
	}
	return mode, &models.DateRange{Start: start, End: end}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readFile(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, withCode(exitUsage, err)
	}
	return filepath.Base(path), data, nil
}

func newPreviewCmd(withApp appRunner) *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Parse and normalize a file without staging it",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			name, data, err := readFile(args[0])
			if err != nil {
				return err
			}
			res, err := a.Imports.Preview(ctx, services.UploadRequest{FileName: name, Data: data, Sheet: sheet})
			if err != nil {
				return err
			}
			return printJSON(res)
		}),
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet name (default: first sheet)")
	return cmd
}

func newUploadCmd(withApp appRunner) *cobra.Command {
	var (
		sheet   string
		window  windowFlags
		promote bool
	)
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Stage a file as a new import run",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			mode, rng, err := window.parse()
			if err != nil {
				return err
			}
			name, data, err := readFile(args[0])
			if err != nil {
				return err
			}
			res, err := a.Imports.Upload(ctx, services.UploadRequest{
				FileName:  name,
				Data:      data,
				Sheet:     sheet,
				Mode:      mode,
				Range:     rng,
				IPAddress: "cli",
			})
			if err != nil {
				return err
			}
			if !promote {
				return printJSON(res.Run)
			}
			result, err := a.Promotion.Promote(ctx, services.PromoteRequest{RunID: &res.Run.ID, IPAddress: "cli"})
			if err != nil {
				return err
			}
			return printJSON(result)
		}),
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet name (default: first sheet)")
	cmd.Flags().BoolVar(&promote, "promote", false, "Promote right after staging")
	window.register(cmd, "incremental")
	return cmd
}

func newPromoteCmd(withApp appRunner) *cobra.Command {
	var (
		runID  string
		window windowFlags
	)
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote every processing run in one transaction, each with its own mode and window",
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			mode, rng, err := window.parse()
			if err != nil {
				return err
			}
			req := services.PromoteRequest{Mode: mode, Range: rng, IPAddress: "cli"}
			if runID != "" {
				id, err := uuid.Parse(runID)
				if err != nil {
					return withCode(exitUsage, fmt.Errorf("invalid --run: %w", err))
				}
				req.RunID = &id
			}
			res, err := a.Promotion.Promote(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(res)
		}),
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run the --mode and window flags apply to; without it they must match every processing run")
	window.register(cmd, "")
	return cmd
}

func newRunsCmd(withApp appRunner) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [ID]",
		Short: "List import runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return withCode(exitUsage, err)
				}
				run, err := a.Ledger.GetRun(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(run)
			}
			runs, err := a.Ledger.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(runs)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	return cmd
}

func newExportCmd(withApp appRunner) *cobra.Command {
	var (
		out string
		pdf bool
	)
	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Write the rejected rows CSV or the run PDF report",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return withCode(exitUsage, err)
			}
			var data []byte
			if pdf {
				data, err = a.Reports.RunPDF(ctx, id)
			} else {
				data, err = a.Reports.RejectedCSV(ctx, id)
			}
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&pdf, "pdf", false, "Write the PDF report instead of the rejected rows")
	return cmd
}

func newExpireCmd(withApp appRunner) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Fail pending or processing runs idle for too long",
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			if olderThan <= 0 {
				olderThan = a.Config.Import.StaleRunAfter
			}
			n, err := a.Ledger.ExpireStale(ctx, olderThan)
			if err != nil {
				return err
			}
			return printJSON(map[string]int64{"expired": n})
		}),
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Idle threshold (default: import.stale_run_after)")
	return cmd
}

func newReferencesCmd(withApp appRunner) *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "references FILE",
		Short: "Load vendors, clients, routes and categories from a TYPE/CODE/NAME sheet",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			name, data, err := readFile(args[0])
			if err != nil {
				return err
			}
			set, err := a.References.Import(ctx, name, data, sheet)
			if err != nil {
				return err
			}
			return printJSON(map[string]int{
				"supervisors": len(set.Supervisors),
				"vendors":     len(set.Vendors),
				"clients":     len(set.Clients),
				"routes":      len(set.Routes),
				"categories":  len(set.Categories),
			})
		}),
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet name (default: first sheet)")
	return cmd
}
