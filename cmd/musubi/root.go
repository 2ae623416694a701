package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/musubi/internal/config"
	"github.com/harunnryd/musubi/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "musubi",
	Short: "Musubi Interaction Orchestrator",
	Long:  `Musubi plans, gates, and executes one assistant turn at a time.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.musubi/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("vdi.allowed_domains", config.DefaultVDIAllowedDomains, "comma-separated hostname allow-list for open_url")
	rootCmd.PersistentFlags().String("policy.fail_mode", config.DefaultPolicyFailMode, "policy gate behavior when the policy service is unreachable (fail_closed, fail_open)")
	rootCmd.PersistentFlags().String("trace.dir", config.DefaultTraceDir, "directory for per-turn trace artifacts")
}
