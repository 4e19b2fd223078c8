// Package cli provides configuration and output helpers for the speechio
// command-line tool.
//
// Configuration lives in ~/.giztoy/speechio/config.yaml and holds named
// contexts, similar to kubectl. A .env file and SPEECHIO_* environment
// variables override the selected context:
//
//	cfg, err := cli.LoadConfig()
//	env, err := cli.LoadEnv()
//	ctx, err := cfg.Resolve("", env)
//
// Results are printed as YAML or JSON with Output; status lines are
// styled with lipgloss.
package cli
