package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

//commandEnv is what every subcommand gets after the config and the logger are ready.
type commandEnv struct {
	cmd    *cobra.Command
	cfg    *Config
	logger *zap.Logger
}

//runWith wraps a subcommand: it loads the config with the given flag bindings and builds the logger.
func runWith(bindings map[string]string, run func(env commandEnv) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		all := map[string]string{"log-level": "log.level", "metrics-addr": "metrics.addr"}
		for name, key := range bindings {
			all[name] = key
		}
		cfg, err := loadConfig(configFile, cmd.Flags(), all)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return run(commandEnv{cmd: cmd, cfg: cfg, logger: logger})
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hist_boost",
		Short:         "histogram gradient boosted trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml or json)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve prometheus metrics on this address while training")

	rootCmd.AddCommand(trainCMD(), predictCMD(), graphCMD(), lcurveCMD(), dumpCMD())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
