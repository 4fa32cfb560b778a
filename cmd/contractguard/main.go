package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	version   = "dev"
	appConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:   "contractguard",
		Short: "Contract clause analysis from the command line",
		Long: `contractguard sends a contract document to the analysis service, shows the
extracted clauses with their risk levels and answers questions about them.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML, same format as the server)")
	flags.String("analysis-endpoint", "", "analysis service URL")
	flags.String("query-endpoint", "", "query service URL")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")

	_ = viper.BindPFlag("analysis.endpoint", flags.Lookup("analysis-endpoint"))
	_ = viper.BindPFlag("query.endpoint", flags.Lookup("query-endpoint"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	initViperEnv()

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}
	appConfig = cfg

	slog.SetDefault(logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}, os.Stderr))

	return nil
}

// initViperEnv maps keys such as query.endpoint to CONTRACTGUARD_QUERY_ENDPOINT.
func initViperEnv() {
	viper.SetEnvPrefix("CONTRACTGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads path if given, then applies flag and CONTRACTGUARD_*
// environment overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		cfg = loaded
	}

	overrides := []struct {
		key    string
		target *string
	}{
		{"analysis.endpoint", &cfg.Analysis.Endpoint},
		{"analysis.api_token", &cfg.Analysis.APIToken},
		{"query.endpoint", &cfg.Query.Endpoint},
		{"query.api_token", &cfg.Query.APIToken},
		{"log.level", &cfg.Log.Level},
		{"log.format", &cfg.Log.Format},
	}
	for _, o := range overrides {
		if v := viper.GetString(o.key); v != "" {
			*o.target = v
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "contractguard %s\n", version)
		},
	}
}
