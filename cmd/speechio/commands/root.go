package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/speechio/pkg/cli"
)

var (
	// Global flags
	cfgFile     string
	contextName string
	envFile     string
	outputFile  string
	inputFile   string
	outputJSON  bool
	verbose     bool

	globalConfig *cli.Config
	globalEnv    *cli.Env
)

var rootCmd = &cobra.Command{
	Use:   "speechio",
	Short: "Doubao speech playback CLI tool",
	Long: `speechio - synthesize, play back and recognize speech with the
Volcengine Doubao binary WebSocket protocol (火山引擎豆包语音).

Configuration is stored in ~/.giztoy/speechio/ and supports multiple contexts,
similar to kubectl's context management. SPEECHIO_* environment variables
and a .env file override the selected context.

Examples:
  # Set up a new context
  speechio config add-context dev --app-id YOUR_APP_ID --token YOUR_TOKEN

  # Queue two sentences, the second one urgent
  speechio say "第一句" -o out.pcm
  speechio say --priority "紧急通知" -o out.pcm

  # Recognize a recording
  speechio asr -f hello.wav --json | jq '.text'
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.giztoy/speechio/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with SPEECHIO_* overrides")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input file")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(ttsCmd)
	rootCmd.AddCommand(asrCmd)
}

func initConfig() error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	globalConfig, err = cli.LoadConfigWithPath(cfgFile)
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	globalEnv, err = cli.LoadEnv(envFile)
	if err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}
	return nil
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the resolved context with environment overrides.
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	ctx, err := cfg.Resolve(contextName, globalEnv)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'speechio config use-context'")
		}
		return nil, err
	}
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func outputFormat() cli.OutputFormat {
	if outputJSON {
		return cli.FormatJSON
	}
	return cli.FormatYAML
}

// outputResult prints result to -o or stdout.
func outputResult(result any) error {
	return cli.Output(result, cli.OutputOptions{
		Format: outputFormat(),
		File:   outputFile,
	})
}

// status prints to stderr so audio on stdout stays clean.
var status = cli.NewPrinter(os.Stderr, os.Stderr, cli.DefaultTheme)
