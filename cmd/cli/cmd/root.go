package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jheapagent/internal/service"
	"github.com/jheapagent/pkg/config"
	"github.com/jheapagent/pkg/telemetry"
	"github.com/jheapagent/pkg/utils"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger utils.Logger

	telemetryShutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "jheapagent",
	Short: "A heap object liveness inspection tool",
	Long: `jheapagent answers two diagnostic questions about an object in a
managed heap: what chain of references keeps it alive, and how many bytes
does it retain?

It parses a binary heap dump, walks the object graph from the queried
object, and reports every GC-root reference chain and a retained-size
estimate. Targets are selected by object ID or by class name.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logLevel := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			logLevel = utils.LevelDebug
		}
		if cfg.Log.OutputPath != "" {
			logger, err = utils.NewFileLogger(logLevel, cfg.Log.OutputPath)
			if err != nil {
				return err
			}
		} else {
			logger = utils.NewDefaultLogger(logLevel, os.Stdout)
		}

		shutdown, err := telemetry.Init(cmd.Context())
		if err != nil {
			logger.Warn("Failed to initialize telemetry: %v", err)
		} else {
			telemetryShutdown = shutdown
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if telemetryShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetryShutdown(ctx); err != nil {
				logger.Warn("Failed to shut down telemetry: %v", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	binName := BinName()
	rootCmd.Example = `  # Show every GC-root reference chain keeping an object alive
  ` + binName + ` gcroots ./heap.hprof 0x7f3a2c10

  # Estimate the retained size of every instance of a class
  ` + binName + ` size ./heap.hprof com.example.cache.Entry

  # Run both queries over several targets and archive the report
  ` + binName + ` report ./heap.hprof 0x7f3a2c10 com.example.cache.Entry -o report.json`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}

// withService builds a service, attaches it to the dump, runs fn, and
// tears everything down again.
func withService(ctx context.Context, dumpPath string, fn func(svc *service.Service) error) error {
	svc, err := service.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := svc.Initialize(ctx); err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.OpenDump(dumpPath); err != nil {
		return err
	}
	return fn(svc)
}
