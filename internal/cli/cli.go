// Package cli builds the whisper-watch command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/PoyBoy96/Whisper-Watch/internal/bootstrap"
	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
	"github.com/PoyBoy96/Whisper-Watch/internal/jobs"
	"github.com/PoyBoy96/Whisper-Watch/internal/subtitle"
	"github.com/PoyBoy96/Whisper-Watch/internal/watch"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath  string
	logLevel    string
	engine      string
	modelPath   string
	outputDir   string
	language    string
	metricsAddr string
}

// BuildCLI constructs the root command and all subcommands.
func BuildCLI() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "whisper-watch",
		Short:         "Queue media files for transcription and subtitle export",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to settings.json")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.engine, "engine", "", "transcription engine (whispercpp, openai)")
	root.PersistentFlags().StringVar(&flags.modelPath, "model", "", "whisper model file or directory")
	root.PersistentFlags().StringVar(&flags.outputDir, "output-dir", "", "directory for generated subtitle files")
	root.PersistentFlags().StringVar(&flags.language, "language", "", "spoken language hint (default auto)")
	root.PersistentFlags().StringVar(&flags.metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")

	root.AddCommand(newTranscribeCmd(flags))
	root.AddCommand(newWatchCmd(flags))
	root.AddCommand(newDoctorCmd(flags))
	return root
}

// Execute runs the CLI and returns the command error, if any.
func Execute() error {
	return BuildCLI().Execute()
}

// newApp builds the application from shared flags.
func newApp(flags *rootFlags) (*bootstrap.App, error) {
	return bootstrap.New(bootstrap.Options{
		ConfigPath:  flags.configPath,
		Engine:      flags.engine,
		ModelPath:   flags.modelPath,
		OutputDir:   flags.outputDir,
		Language:    flags.language,
		MetricsAddr: flags.metricsAddr,
		Logger:      newLogger(flags.logLevel),
	})
}

// newLogger configures a console zerolog writer for CLI runs.
func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(parsed).With().Timestamp().Logger()
}

// newTranscribeCmd submits the given files and waits for terminal states.
func newTranscribeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <media-file> [media-file...]",
		Short: "Transcribe media files in submission order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(flags)
			if err != nil {
				return err
			}
			if app.Diagnostics.HasFailures {
				printReport(cmd, app.Diagnostics)
				return fmt.Errorf("startup checks failed; run `whisper-watch doctor` for details")
			}

			waiter := newTerminalWaiter(cmd, len(args))
			app.Manager.Subscribe(waiter)
			defer app.Manager.Unsubscribe(waiter)

			for _, path := range args {
				if _, err := app.SubmitPath(path); err != nil {
					return fmt.Errorf("submit %s: %w", path, err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			select {
			case <-waiter.done():
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = app.Shutdown(shutdownCtx)
				return fmt.Errorf("interrupted")
			}

			if waiter.failures() > 0 {
				return fmt.Errorf("%d job(s) failed", waiter.failures())
			}
			return nil
		},
	}
}

// newWatchCmd submits media files dropped into a directory until stopped.
func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory and queue new media files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(flags)
			if err != nil {
				return err
			}

			printer := newEventPrinter(cmd)
			app.Manager.Subscribe(printer)
			defer app.Manager.Unsubscribe(printer)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			watcher := watch.New(args[0], app.Manager, app.SubmitDefaults(), app.Log)
			err = watcher.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = app.Shutdown(shutdownCtx)

			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

// newDoctorCmd prints the startup diagnostics report.
func newDoctorCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, model path, and output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(flags)
			if err != nil {
				return err
			}

			printReport(cmd, app.Diagnostics)
			if app.Diagnostics.HasFailures {
				return fmt.Errorf("one or more checks failed")
			}
			return nil
		},
	}
}

// printReport renders a diagnostics report as aligned text.
func printReport(cmd *cobra.Command, report domain.DiagnosticReport) {
	for _, item := range report.Items {
		marker := "ok  "
		if item.Status == domain.DiagnosticStatusFail {
			marker = "FAIL"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %-18s %s\n", marker, item.Name, item.Message)
		if item.Hint != "" && item.Status == domain.DiagnosticStatusFail {
			fmt.Fprintf(cmd.OutOrStdout(), "       hint: %s\n", item.Hint)
		}
	}
}

// terminalWaiter prints job events and unblocks once the expected number
// of jobs reach a terminal state.
type terminalWaiter struct {
	printer  *eventPrinter
	expected int

	mu       sync.Mutex
	seen     int
	failed   int
	finished chan struct{}
}

func newTerminalWaiter(cmd *cobra.Command, expected int) *terminalWaiter {
	return &terminalWaiter{
		printer:  newEventPrinter(cmd),
		expected: expected,
		finished: make(chan struct{}),
	}
}

// HandleEvent implements jobs.Observer.
func (w *terminalWaiter) HandleEvent(event jobs.Event) {
	w.printer.HandleEvent(event)

	switch event.Type {
	case jobs.EventTypeJobCompleted, jobs.EventTypeJobFailed, jobs.EventTypeJobCancelled:
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen++
	if event.Type == jobs.EventTypeJobFailed {
		w.failed++
	}
	if w.seen == w.expected {
		close(w.finished)
	}
}

func (w *terminalWaiter) done() <-chan struct{} { return w.finished }

func (w *terminalWaiter) failures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

// eventPrinter renders the live event stream for terminal users.
type eventPrinter struct {
	cmd *cobra.Command
}

func newEventPrinter(cmd *cobra.Command) *eventPrinter {
	return &eventPrinter{cmd: cmd}
}

// HandleEvent implements jobs.Observer.
func (p *eventPrinter) HandleEvent(event jobs.Event) {
	out := p.cmd.OutOrStdout()
	short := shortID(event.JobID)

	switch event.Type {
	case jobs.EventTypeJobQueued:
		fmt.Fprintf(out, "%s queued\n", short)
	case jobs.EventTypeJobLoading:
		if event.Progress > 0 {
			fmt.Fprintf(out, "%s loading %3.0f%% %s\n", short, event.Progress*100, event.Message)
		}
	case jobs.EventTypeJobTranscribing:
		fmt.Fprintf(out, "%s transcribing\n", short)
	case jobs.EventTypeJobSegment:
		if event.Segment != nil {
			fmt.Fprintf(out, "%s [%s --> %s] %s\n",
				short,
				subtitle.Timestamp(event.Segment.Start),
				subtitle.Timestamp(event.Segment.End),
				event.Segment.Text,
			)
		}
	case jobs.EventTypeJobCompleted:
		fmt.Fprintf(out, "%s completed: %s\n", short, event.OutputPath)
	case jobs.EventTypeJobFailed:
		fmt.Fprintf(out, "%s failed (%s): %s\n", short, event.ErrorKind, event.Message)
	case jobs.EventTypeJobCancelled:
		fmt.Fprintf(out, "%s cancelled\n", short)
	}
}

// shortID abbreviates a UUID for terminal output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
