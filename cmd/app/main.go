package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/mdmemo/internal"
	pkgconfig "github.com/starford/mdmemo/pkg/config"
)

type runFunc func(ctx context.Context, opts ...internal.Option) error

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg, pkgconfig.WithEnvPrefix(internal.EnvPrefix)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func action(run runFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if dir := cmd.String("dir"); dir != "" {
			cfg.Import.Dir = dir
		}
		if url := cmd.String("git"); url != "" {
			cfg.Import.GitURL = url
		}

		if err := run(ctx, internal.WithConfig(cfg)); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "mdmemo",
		Usage:  "Flashcard notes with Markdown bodies, tags, relations and SM-2 spaced repetition",
		Action: action(internal.Run),
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
				Name:   "mcp",
				Usage:  "Serve the card tools to MCP clients over stdio",
				Action: action(internal.RunMCP),
			},
			{
				Name:   "import",
				Usage:  "Import a directory of Markdown cards, optionally cloned from git, and exit",
				Action: action(internal.RunImport),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory of .md files (overrides import.dir)",
					},
					&cli.StringFlag{
						Name:  "git",
						Usage: "Git URL to clone or pull into the directory (overrides import.git_url)",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
