package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/screa/powminer/internal/config"
	logpkg "github.com/screa/powminer/internal/logger"
	"github.com/screa/powminer/pkg/display"
	minerpkg "github.com/screa/powminer/pkg/miner"
	"github.com/screa/powminer/pkg/solver"
	"github.com/screa/powminer/pkg/types"
	"github.com/screa/powminer/pkg/worker"
)

var (
	cfg    = config.NewConfig()
	v      = viper.New()
	logger logpkg.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Proof-of-work mining worker pool",
		Long: `A command line miner that runs one solver per worker goroutine.
Workers search for nonces whose keccak256 seal hash meets the target of the
current work and report their hash rate while they run.`,
		SilenceUsage: true,
		RunE:         runMiner,
	}

	flags := rootCmd.Flags()
	flags.String("config", "", "Config file (yaml, json or toml)")
	flags.IntP("workers", "w", cfg.Workers, "Number of worker goroutines")
	flags.StringP("arch", "a", cfg.Arch, "Solver architecture: auto, scalar, avx2 or avx512")
	flags.StringP("pow-hash", "p", "", "Initial pow hash (hex)")
	flags.StringP("target", "t", "", "Initial target (hex)")
	flags.Uint64P("difficulty", "d", 0, "Initial difficulty, used instead of --target")
	flags.IntP("batch-size", "b", cfg.BatchSize, "Nonces tried per solve call")
	flags.Duration("report-interval", cfg.ReportInterval, "Hash rate report interval")
	flags.Duration("idle-interval", cfg.IdleInterval, "Sleep while stopped or without work")
	flags.Int("seal-buffer", cfg.SealBuffer, "Seal queue capacity")
	flags.Int("inbox-size", cfg.InboxSize, "Per-worker control queue capacity")
	flags.Int("dedupe-size", cfg.DedupeSize, "Number of recent seals remembered")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("log-file", "l", "", "Log file (default: stdout)")
	flags.Bool("no-progress", false, "Disable the progress display")
	flags.Bool("stdin-control", false, "Read work/start/stop/quit commands from stdin")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "detect",
		Short: "Print the detected CPU and solver architecture",
		Run: func(cmd *cobra.Command, args []string) {
			printCPUInfo(cmd, solver.DetectCPU())
		},
	})
	return rootCmd
}

func printCPUInfo(cmd *cobra.Command, info solver.CPUInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "CPU: %s\n", info.Brand)
	fmt.Fprintf(out, "Logical cores: %d\n", info.LogicalCores)
	fmt.Fprintf(out, "Features: %s\n", strings.Join(info.Features, " "))
	fmt.Fprintf(out, "Architecture: %s (%d lanes)\n", info.Detected, info.Detected.Lanes())
}

func runMiner(cmd *cobra.Command, args []string) error {
	if err := config.Load(v, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := setupLogging(); err != nil {
		return err
	}
	logger.Info("Starting miner", "Workers", cfg.Workers, "Arch", cfg.Arch)
	logger.Info("Initial work", "Target", cfg.GetTargetDescription())

	var opts []minerpkg.Option
	var board *display.Board
	if !cfg.NoProgress {
		board = display.NewBoard(os.Stderr, display.DefaultRefresh)
		opts = append(opts, minerpkg.WithStatus(func(id int) worker.StatusSink {
			return board.Lane(fmt.Sprintf("w%d", id))
		}))
	}

	miner, err := minerpkg.NewMiner(cfg, logger, submitSeal, opts...)
	if err != nil {
		return err
	}

	// Set up signal handling for Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := miner.Start(ctx); err != nil {
		return err
	}
	if board != nil {
		board.Start()
	}

	if cfg.StdinControl {
		go func() {
			if err := runConsole(ctx, os.Stdin, miner.Dispatcher(), logger.Module("console")); err != nil {
				logger.Error("Console failed", "Err", err)
			}
			stop()
		}()
	}

	<-ctx.Done()
	logger.Info("Stopping miners...")

	miner.Stop()
	if board != nil {
		board.Stop()
	}

	stats := miner.Stats()
	logger.Info("Mining finished",
		"Duration", stats.Elapsed.String(),
		"Hashes", humanize.Comma(stats.Hashes),
		"Rate", humanize.SIWithDigits(stats.Rate, 2, "H/s"),
		"Accepted", stats.Seals.Accepted,
		"Stale", stats.Seals.Stale,
		"NoWork", stats.Seals.NoWork,
		"Duplicate", stats.Seals.Duplicate,
		"Invalid", stats.Seals.Invalid,
		"Rejected", stats.Seals.Rejected,
	)
	return nil
}

func submitSeal(seal types.Seal, work types.WorkItem) error {
	logger.Info("Found seal",
		"PowHash", seal.PowHash.Hex(),
		"Nonce", seal.Nonce.Hex(),
		"Target", work.Target.Hex(),
	)
	return nil
}

func setupLogging() error {
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return errors.Wrap(err, "failed to open log file")
		}
		logger = logpkg.NewWriter(file)
	} else {
		logger = logpkg.New()
	}

	if cfg.Verbose {
		logger.SetToDebug()
	}
	return nil
}
