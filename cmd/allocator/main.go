// allocator - risk-tolerance portfolio optimizer on the command line
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/di"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/version"
	"github.com/aristath/allocator/pkg/logger"
)

var (
	logLevel  string
	modelFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "allocator",
		Short: "Risk-tolerance portfolio allocator",
		Long: `allocator rebalances a portfolio with a mean-variance optimizer.
Higher risk tolerance moves capital toward higher expected return.`,
		SilenceUsage: true,
	}

	// Flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&modelFile, "model", "", "YAML statistics model file (overrides STATISTICS_MODEL_FILE)")

	// Subcommands
	rootCmd.AddCommand(optimizeCmd())
	rootCmd.AddCommand(frontierCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "allocator version %s\n", version.Version)
		},
	}
}

// optionFlags holds per-run overrides of the configured optimizer options.
type optionFlags struct {
	portfolioFile  string
	wholeShares    bool
	allowCashDrift bool
	minWeight      float64
	maxWeight      float64
	precision      int32
}

func (f *optionFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.portfolioFile, "portfolio", "p", "", "Portfolio JSON file, '-' for stdin (default: demo portfolio)")
	flags.BoolVar(&f.wholeShares, "whole-shares", false, "Round adjusted shares down to whole shares")
	flags.BoolVar(&f.allowCashDrift, "allow-cash-drift", false, "Allow part of the capital to stay uninvested")
	flags.Float64Var(&f.minWeight, "min-weight", 0, "Minimum capital weight per holding")
	flags.Float64Var(&f.maxWeight, "max-weight", 1, "Maximum capital weight per holding")
	flags.Int32Var(&f.precision, "precision", optimization.DefaultPrecision, "Decimal places on adjusted shares")
}

// apply overlays the flags the user actually set on the configured options.
func (f *optionFlags) apply(cmd *cobra.Command, opts optimization.Options) optimization.Options {
	flags := cmd.Flags()
	if flags.Changed("whole-shares") {
		opts.WholeShares = f.wholeShares
	}
	if flags.Changed("allow-cash-drift") {
		opts.AllowCashDrift = f.allowCashDrift
	}
	if flags.Changed("min-weight") {
		opts.MinWeight = f.minWeight
	}
	if flags.Changed("max-weight") {
		opts.MaxWeight = f.maxWeight
	}
	if flags.Changed("precision") {
		opts.Precision = f.precision
	}
	return opts
}

func optimizeCmd() *cobra.Command {
	var riskTolerance float64
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize a portfolio for a risk tolerance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("risk-tolerance") {
				return fmt.Errorf("--risk-tolerance is required")
			}

			container, err := wire(cmd)
			if err != nil {
				return err
			}
			portfolio, err := readPortfolio(cmd, flags.portfolioFile, container.DefaultPortfolio)
			if err != nil {
				return err
			}

			opts := flags.apply(cmd, container.OptimizerService.Options())
			result, err := container.OptimizerService.OptimizeWithOptions(riskTolerance, portfolio, opts)
			if err != nil {
				return err
			}
			if result.Fallback {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", result.Warning)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().Float64VarP(&riskTolerance, "risk-tolerance", "r", 0, "Risk tolerance, a positive number")
	flags.register(cmd)

	return cmd
}

func frontierCmd() *cobra.Command {
	var tolerances []float64
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "Sweep risk tolerances and print return/volatility points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := wire(cmd)
			if err != nil {
				return err
			}
			portfolio, err := readPortfolio(cmd, flags.portfolioFile, container.DefaultPortfolio)
			if err != nil {
				return err
			}

			opts := flags.apply(cmd, container.OptimizerService.Options())
			points, err := container.OptimizerService.Frontier(portfolio, tolerances, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), points)
		},
	}

	cmd.Flags().Float64SliceVarP(&tolerances, "tolerances", "t", nil, "Comma-separated risk tolerances (default sweep when empty)")
	flags.register(cmd)

	return cmd
}

// wire loads the environment configuration, applies the root flags and builds
// the container. Logs go to stderr so stdout carries only results.
func wire(cmd *cobra.Command) (*di.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") || os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = logLevel
	}
	if modelFile != "" {
		cfg.StatisticsModelFile = modelFile
	}

	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	return di.Wire(cfg, log)
}

func newLogger(out io.Writer, level string) zerolog.Logger {
	return logger.New(logger.Config{
		Level:  level,
		Pretty: true,
		Output: out,
	})
}

func readPortfolio(cmd *cobra.Command, path string, fallback domain.Portfolio) (domain.Portfolio, error) {
	switch path {
	case "":
		return fallback.Clone(), nil
	case "-":
		return domain.ReadPortfolio(cmd.InOrStdin())
	default:
		return domain.LoadPortfolioFile(path)
	}
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
