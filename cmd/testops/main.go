package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"testops/internal/config"
	"testops/internal/generator"
	"testops/internal/logging"
	"testops/internal/pipeline"
	"testops/internal/store"
	"testops/internal/validator"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// errChecksFailed is returned by --strict runs with failing candidates.
var errChecksFailed = errors.New("validation failed")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "testops",
	Short: "testops - Allure test draft generator and structural validator",
	Long: `testops drafts pytest files with an LLM and checks them against the
Allure reporting conventions:

  aaa                 Arrange, Act and Assert mentioned in that order
  decorator_present   a function decorated with @allure.<something>
  step_present        a "with allure.step(...)" block
  attachment_present  an allure.attach... call

Code that does not parse is reported as {"error": "Invalid syntax"}.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if verbose {
			zcfg := zap.NewDevelopmentConfig()
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			logger, err = zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logging.SetLogger(logger)
			return nil
		}

		if err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Base()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "testops.yaml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(complexityCmd)
	rootCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func currentConfig() *config.Config {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg
}

func newValidator() (*validator.Validator, error) {
	opts, err := currentConfig().ValidatorOptions()
	if err != nil {
		return nil, err
	}
	return validator.New(opts), nil
}

// openStore opens the run history when enabled. The returned closer is never nil.
func openStore(force bool) (*store.Store, func(), error) {
	c := currentConfig()
	if !c.Store.Enabled && !force {
		return nil, func() {}, nil
	}
	st, err := store.Open(c.Store.Path)
	if err != nil {
		return nil, func() {}, err
	}
	return st, func() { st.Close() }, nil
}

// buildPipeline assembles the pipeline from the loaded config.
func buildPipeline(ctx context.Context, withGenerator bool, st *store.Store) (*pipeline.Pipeline, error) {
	c := currentConfig()
	v, err := newValidator()
	if err != nil {
		return nil, err
	}

	pc := pipeline.Config{
		Validator:    v,
		ParseTimeout: c.GetParseTimeout(),
	}
	if st != nil {
		pc.Recorder = st
	}
	if withGenerator {
		client, err := generator.NewClient(ctx, c.Generator)
		if err != nil {
			return nil, err
		}
		pc.Generator = generator.New(client, c.Generator.PromptTemplate, c.GetGeneratorTimeout())
	}
	return pipeline.New(pc), nil
}
