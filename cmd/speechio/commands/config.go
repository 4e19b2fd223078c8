package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/speechio/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple API configurations,
similar to kubectl's context management.

Configuration is stored in ~/.giztoy/speechio/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Example:
  speechio config add-context dev --app-id YOUR_APP_ID --token YOUR_TOKEN

  # Cache synthesized speech in a bucket
  speechio config add-context prod \
    --app-id YOUR_APP_ID --token YOUR_TOKEN \
    --voice BV700_streaming --s3-bucket speech-cache --s3-region cn-north-1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := contextFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := getConfig().AddContext(args[0], ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q added successfully", args[0])
		return nil
	},
}

func contextFromFlags(cmd *cobra.Command) (*cli.Context, error) {
	f := cmd.Flags()
	ctx := &cli.Context{}
	ctx.AppID, _ = f.GetString("app-id")
	ctx.Token, _ = f.GetString("token")
	ctx.Secret, _ = f.GetString("secret")
	if ctx.AppID == "" {
		return nil, fmt.Errorf("--app-id is required")
	}
	if ctx.Token == "" {
		return nil, fmt.Errorf("--token is required")
	}
	ctx.Cluster, _ = f.GetString("cluster")
	ctx.ASRCluster, _ = f.GetString("asr-cluster")
	ctx.WSURL, _ = f.GetString("ws-url")
	ctx.Timeout, _ = f.GetInt("timeout")
	ctx.MaxSessions, _ = f.GetInt("max-sessions")
	ctx.Voice, _ = f.GetString("voice")
	ctx.SampleRate, _ = f.GetInt("sample-rate")

	cache := &cli.CacheConfig{}
	cache.Disabled, _ = f.GetBool("no-cache")
	cache.Dir, _ = f.GetString("cache-dir")
	cache.Index, _ = f.GetString("cache-index")
	if bucket, _ := f.GetString("s3-bucket"); bucket != "" {
		cache.S3 = &cli.S3Config{Bucket: bucket}
		cache.S3.Prefix, _ = f.GetString("s3-prefix")
		cache.S3.Region, _ = f.GetString("s3-region")
		cache.S3.Endpoint, _ = f.GetString("s3-endpoint")
	}
	if *cache != (cli.CacheConfig{}) {
		ctx.Cache = cache
	}
	return ctx, nil
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getConfig().DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getConfig().UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}
		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tAPP_ID\tVOICE\tCACHE")
		for _, name := range names {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", current, name, ctx.AppID, ctx.Voice, cacheSummary(ctx.Cache))
		}
		return w.Flush()
	},
}

func cacheSummary(c *cli.CacheConfig) string {
	switch {
	case c == nil:
		return "local"
	case c.Disabled:
		return "off"
	case c.S3 != nil && c.S3.Bucket != "":
		return "s3://" + c.S3.Bucket
	default:
		return "local"
	}
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		fmt.Printf("Config file: %s\n", cfg.Path())
		fmt.Printf("Current context: %s\n", cfg.CurrentContext)
		fmt.Printf("Contexts: %d\n", len(cfg.Contexts))

		for _, name := range cfg.ListContexts() {
			ctx := cfg.Contexts[name]
			fmt.Printf("\n  %s:\n", name)
			cli.PrintField("App ID", ctx.AppID)
			cli.PrintField("Token", cli.MaskAPIKey(ctx.Token))
			if ctx.Secret != "" {
				cli.PrintField("Secret", cli.MaskAPIKey(ctx.Secret))
			}
			if ctx.Cluster != "" {
				cli.PrintField("Cluster", ctx.Cluster)
			}
			if ctx.ASRCluster != "" {
				cli.PrintField("ASR cluster", ctx.ASRCluster)
			}
			if ctx.WSURL != "" {
				cli.PrintField("WS URL", ctx.WSURL)
			}
			if ctx.Timeout > 0 {
				cli.PrintField("Timeout", fmt.Sprintf("%ds", ctx.Timeout))
			}
			if ctx.Voice != "" {
				cli.PrintField("Voice", ctx.Voice)
			}
			cli.PrintField("Cache", cacheSummary(ctx.Cache))
		}
		return nil
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.String("app-id", "", "Application ID (required)")
	f.String("token", "", "Bearer token (required)")
	f.String("secret", "", "Access secret for HMAC256 signed recognition")
	f.String("cluster", "", "TTS cluster (default volcano_tts)")
	f.String("asr-cluster", "", "ASR cluster")
	f.String("ws-url", "", "WebSocket base URL")
	f.Int("timeout", 0, "Handshake timeout in seconds")
	f.Int("max-sessions", 0, "Maximum concurrent sessions")
	f.String("voice", "", "Default voice type")
	f.Int("sample-rate", 0, "Default sample rate")
	f.Bool("no-cache", false, "Disable the speech cache")
	f.String("cache-dir", "", "Directory for cached audio")
	f.String("cache-index", "", `Cache index directory, or "memory"`)
	f.String("s3-bucket", "", "Store cached audio in this S3 bucket")
	f.String("s3-prefix", "", "Key prefix inside the bucket")
	f.String("s3-region", "", "Bucket region")
	f.String("s3-endpoint", "", "S3-compatible endpoint URL")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
