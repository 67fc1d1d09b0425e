package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CardScan/internal/config"
	"github.com/dharsanguruparan/CardScan/internal/logging"
	pdfutil "github.com/dharsanguruparan/CardScan/internal/pdf"
	"github.com/dharsanguruparan/CardScan/internal/pipeline"
	"github.com/dharsanguruparan/CardScan/internal/qr"
)

type options struct {
	envFile         string
	continueOnError bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cardscan: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "cardscan <image>",
		Short: "Print the contents of a SMART Health Card QR code",
		Long: `cardscan finds the QR codes in an image, decodes the SMART Health Card each one
carries and prints one line per patient or immunization record.

The card signature is not verified.`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := qr.Scan(args[0])
			if err != nil {
				return err
			}
			return runSource(cmd, opts, symbols)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment variables from this file instead of ./.env")
	cmd.PersistentFlags().BoolVar(&opts.continueOnError, "continue-on-error", false, "Keep decoding remaining codes after one fails (the run still exits non-zero)")
	cmd.AddCommand(
		newTokenCmd(opts),
		newPDFCmd(opts),
		newSubmitCmd(opts),
		newStatusCmd(opts),
	)
	return cmd
}

func newTokenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "token [shc:/...]",
		Short: "Decode tokens given as arguments, or one per line on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var src pipeline.SymbolSource = pipeline.NewStaticSource(args...)
			if len(args) == 0 {
				src = pipeline.NewLineSource(cmd.InOrStdin())
			}
			return runSource(cmd, opts, src)
		},
	}
}

func newPDFCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pdf <file>",
		Short: "Decode the shc:/ tokens found in a PDF's text",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open pdf: %w", err)
			}
			defer f.Close()
			src, err := pdfutil.SourceFromReader(f)
			if err != nil {
				return err
			}
			return runSource(cmd, opts, src)
		},
	}
}

func runSource(cmd *cobra.Command, opts *options, src pipeline.SymbolSource) error {
	cfg, log, err := setup(opts)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	runner := pipeline.NewRunner(log, pipeline.Options{
		ContinueOnError: cfg.ContinueOnError || opts.continueOnError,
	})
	start := time.Now()
	cards, err := runner.Run(cmd.Context(), src, cmd.OutOrStdout())
	log.Debug("run finished", zap.Int("cards", cards), zap.Duration("took", time.Since(start)))
	return err
}

func setup(opts *options) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// usageError marks a bad command line.
type usageError struct {
	use string
	msg string
}

func (e *usageError) Error() string { return fmt.Sprintf("usage: %s: %s", e.use, e.msg) }

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{use: cmd.UseLine(), msg: fmt.Sprintf("expected %d argument(s), got %d", n, len(args))}
		}
		return nil
	}
}
