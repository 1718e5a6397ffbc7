package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"dividend-analyzer/internal/analysis"
	"dividend-analyzer/internal/cache"
	"dividend-analyzer/internal/interfaces"
	"dividend-analyzer/internal/kabutan"
	"dividend-analyzer/internal/kvstore"
	"dividend-analyzer/internal/logger"
	"dividend-analyzer/internal/reference"
	"dividend-analyzer/internal/relay"
	"dividend-analyzer/internal/resolver"
	"dividend-analyzer/internal/resolver/resolverobs"
	"dividend-analyzer/internal/store"
	"dividend-analyzer/internal/types"
)

const (
	exitFailure  = 1
	exitCritical = 2
)

// errCritical marks a finished analysis that found a critical risk
var errCritical = errors.New("critical risk detected")

// app holds everything the subcommands share
type app struct {
	cfg       *store.Config
	kv        interfaces.KeyValueStore
	cache     *cache.Store
	reference *reference.Dataset
	analyzer  *analysis.Analyzer
}

func main() {
	_ = godotenv.Load()

	var (
		configPath string
		a          *app
	)

	rootCmd := &cobra.Command{
		Use:           "dividend-analyzer",
		Short:         "Score Tokyo-listed stocks for dividend quality",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(configPath)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	rootCmd.AddCommand(
		analyzeCmd(func() *app { return a }),
		cacheCmd(func() *app { return a }),
		symbolsCmd(func() *app { return a }),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if a != nil {
		if cerr := a.close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "Warning: close cache: %v\n", cerr)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = logger.Shutdown(shutdownCtx)
		cancel()
	}

	switch {
	case err == nil:
	case errors.Is(err, errCritical):
		os.Exit(exitCritical)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}
}

func newApp(configPath string) (*app, error) {
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// env wins over the config file so LOG_LEVEL=DEBUG works ad hoc
	logCfg := logger.LoadConfigFromEnv()
	if os.Getenv("LOG_LEVEL") == "" {
		logCfg.Level = cfg.Log.Level
	}
	if os.Getenv("LOG_FORMAT") == "" {
		logCfg.Format = cfg.Log.Format
	}
	if err := logger.InitWithConfig(logCfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	kv, err := kvstore.New(cfg.Cache.Backend, cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	ref, err := reference.Load()
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("load reference data: %w", err)
	}

	records := cache.NewStoreFromConfig(kv, cfg)
	source := resolverobs.Wrap(resolver.New(
		relay.NewFetcherFromConfig(cfg),
		kabutan.NewParser(cfg.Fetch.TargetURL),
		records,
		ref,
	))

	return &app{
		cfg:       cfg,
		kv:        kv,
		cache:     records,
		reference: ref,
		analyzer:  analysis.NewAnalyzer(source, ref),
	}, nil
}

func (a *app) close() error {
	if a == nil || a.kv == nil {
		return nil
	}
	return a.kv.Close()
}

func analyzeCmd(get func() *app) *cobra.Command {
	var (
		source string
		format string
		save   bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "analyze <code>",
		Short: "Analyze a 4-digit stock code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()

			if source == "" {
				source = a.cfg.Analysis.DefaultSource
			}
			tier, err := types.ParseTier(source)
			if err != nil {
				return err
			}
			if format == "" {
				format = a.cfg.Analysis.ReportFormat
			}
			reportFormat, err := analysis.ParseFormat(format)
			if err != nil {
				return err
			}

			report, err := a.analyzer.Analyze(cmd.Context(), args[0], tier)
			if err != nil {
				return err
			}

			dir := output
			if dir == "" {
				dir = a.cfg.Analysis.OutputDir
			}
			reporter := analysis.NewReporter(dir)

			content, err := reporter.GenerateReport(report, reportFormat)
			if err != nil {
				return fmt.Errorf("generate report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)

			if save {
				path, err := reporter.SaveReport(report, reportFormat)
				if err != nil {
					return fmt.Errorf("save report: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Report saved to: %s\n", path)
			}

			if report.HasCritical() {
				return errCritical
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "data source: online, cache or local (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: text, json or csv (default from config)")
	cmd.Flags().BoolVar(&save, "save", false, "also write the report to the output directory")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory for --save (default from config)")
	return cmd
}

func cacheCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached codes with their capture time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			symbols := a.cache.Symbols(cmd.Context())
			if len(symbols) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "キャッシュは空です")
				return nil
			}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"銘柄コード", "保存日時", "状態"})
			for _, s := range symbols {
				saved := "不明"
				if ts, ok := a.cache.TimestampOf(cmd.Context(), s); ok {
					saved = ts.Local().Format(resolver.TimestampLayout)
				}
				state := "期限切れ"
				if _, ok := a.cache.Get(cmd.Context(), s); ok {
					state = "有効"
				}
				tw.AppendRow(table.Row{s, saved, state})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <code>",
		Short: "Print the cached record for a code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			code, err := analysis.ValidateSymbol(args[0])
			if err != nil {
				return err
			}
			rec, ok := a.cache.Get(cmd.Context(), code)
			if !ok {
				return fmt.Errorf("%s: %w", code, resolver.ErrCacheMiss)
			}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleLight)
			tw.SetTitle(fmt.Sprintf("%s %s", rec.Symbol, rec.Name))
			tw.AppendHeader(table.Row{"決算期", "売上高", "営業利益率", "EPS", "1株配当", "配当性向", "自己資本比率"})
			for _, y := range rec.YearlyData {
				tw.AppendRow(table.Row{y.FiscalYear, y.Sales, y.OperatingMargin, y.EPS, y.Dividend, y.PayoutRatio, y.EquityRatio})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return nil
		},
	})

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if expiredOnly {
				n := a.cache.Purge(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "%d件の期限切れキャッシュを削除しました\n", n)
				return nil
			}
			a.cache.Clear(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "キャッシュをクリアしました")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only remove expired or corrupt entries")
	cmd.AddCommand(clearCmd)

	return cmd
}

func symbolsCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List the codes bundled as sample data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			tw := table.NewWriter()
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"銘柄コード", "銘柄名", "業種", "期間"})
			for _, s := range a.reference.Symbols() {
				rec, ok := a.reference.Lookup(s)
				if !ok {
					continue
				}
				period := ""
				if n := len(rec.YearlyData); n > 0 {
					period = fmt.Sprintf("%s 〜 %s", rec.YearlyData[0].FiscalYear, rec.YearlyData[n-1].FiscalYear)
				}
				tw.AppendRow(table.Row{s, rec.Name, rec.Sector, period})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return nil
		},
	}
}
