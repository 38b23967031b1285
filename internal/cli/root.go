package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/storyqa/internal/model"
)

const version = "storyqa v0.3.0"

var (
	cfgFile    string
	verbose    bool
	jsonOutput bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "storyqa",
	Short: "storyqa - user story quality checks",
	Long: `storyqa sends user stories to a prediction service that classifies
them as ambiguous or clear and as well-formed or not, then asks for
improvement suggestions and lays them out as a readable outline.

Stories can be typed in, read from a file, or imported from Jira.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.storyqa/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().String("service-url", "", "prediction service base URL")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("service.base_url", rootCmd.PersistentFlags().Lookup("service-url"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(model.DefaultConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.storyqa")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// STORYQA_SERVICE_BASE_URL, STORYQA_JIRA_TOKEN, ...
	viper.SetEnvPrefix("STORYQA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Well-known secret names are accepted too
	_ = viper.BindEnv("llm.api_key", "STORYQA_LLM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY")
	_ = viper.BindEnv("llm.base_url", "STORYQA_LLM_BASE_URL", "OLLAMA_BASE_URL")
	_ = viper.BindEnv("jira.token", "STORYQA_JIRA_TOKEN", "JIRA_API_TOKEN")
	_ = viper.BindEnv("jira.email", "STORYQA_JIRA_EMAIL", "JIRA_EMAIL")
	_ = viper.BindEnv("jira.domain", "STORYQA_JIRA_DOMAIN", "JIRA_DOMAIN")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so env overrides reach Unmarshal
func setDefaults(cfg *model.Config) {
	viper.SetDefault("service.base_url", cfg.Service.BaseURL)
	viper.SetDefault("service.timeout", cfg.Service.Timeout)
	viper.SetDefault("service.user_agent", cfg.Service.UserAgent)
	viper.SetDefault("service.max_body_bytes", cfg.Service.MaxBodyBytes)
	viper.SetDefault("service.http_proxy", cfg.Service.HTTPProxy)
	viper.SetDefault("service.https_proxy", cfg.Service.HTTPSProxy)

	viper.SetDefault("rate_limiting.requests_per_second", cfg.RateLimiting.RequestsPerSecond)
	viper.SetDefault("rate_limiting.burst_size", cfg.RateLimiting.BurstSize)
	viper.SetDefault("concurrency.workers", cfg.Concurrency.Workers)

	viper.SetDefault("cache.enabled", cfg.Cache.Enabled)
	viper.SetDefault("cache.dir", cfg.Cache.Dir)
	viper.SetDefault("cache.memory_ttl", cfg.Cache.MemoryTTL)
	viper.SetDefault("cache.disk_ttl", cfg.Cache.DiskTTL)

	viper.SetDefault("llm.provider", cfg.LLM.Provider)
	viper.SetDefault("llm.model", cfg.LLM.Model)
	viper.SetDefault("llm.api_key", cfg.LLM.APIKey)
	viper.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	viper.SetDefault("llm.timeout", cfg.LLM.Timeout)
	viper.SetDefault("llm.max_tokens", cfg.LLM.MaxTokens)

	viper.SetDefault("jira.domain", cfg.Jira.Domain)
	viper.SetDefault("jira.email", cfg.Jira.Email)
	viper.SetDefault("jira.token", cfg.Jira.Token)
	viper.SetDefault("jira.project", cfg.Jira.Project)
	viper.SetDefault("jira.board", cfg.Jira.Board)
	viper.SetDefault("jira.page_size", cfg.Jira.PageSize)

	viper.SetDefault("output.format", cfg.Output.Format)
	viper.SetDefault("output.verbose", cfg.Output.Verbose)
}

// loadConfig merges defaults, file, env and flags into a validated Config
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if jsonOutput {
		cfg.Output.Format = "json"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes text logs to stderr; verbose lowers the level to debug
func newLogger(cfg *model.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
