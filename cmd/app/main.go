package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/dagaz/internal"
	"github.com/starford/dagaz/internal/dedupservice"
	pkgconfig "github.com/starford/dagaz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runOnce(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	res, err := internal.RunOnce(ctx, cfg, dedupservice.RunOptions{
		Filter:   cmd.String("filter"),
		DedupKey: cmd.String("key"),
		TagName:  cmd.String("tag"),
	})
	if err != nil {
		color.Red("dedup failed: %v", err)
		return err
	}

	for _, line := range res.Trace {
		fmt.Println(line)
	}
	color.Green("%s", res.Message)
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, cfg)
}

func main() {
	cmd := &cli.Command{
		Name:  "dagaz",
		Usage: "Flashcard collection server with duplicate detection and tagging",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server and deck watcher",
				Action: serve,
			},
			{
				Name:  "run",
				Usage: "Run one dedup pass and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "filter",
						Usage: "Note filter (overrides stored settings)",
					},
					&cli.StringFlag{
						Name:  "key",
						Usage: "Field name to compare, or 'Combine All Keys'",
					},
					&cli.StringFlag{
						Name:  "tag",
						Usage: "Tag to apply to duplicates",
					},
				},
				Action: runOnce,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
