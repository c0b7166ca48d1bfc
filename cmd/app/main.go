package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func loadApp(cmd *cli.Command) (*internal.App, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return internal.New(internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:  "ansuz",
		Usage: "Documentation integrity validator and standards adoption engine for markdown guide trees",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "ansuz.yaml",
				Value:       "ansuz.yaml",
				Sources:     cli.EnvVars("ANSUZ_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Check the navigation graph: orphan guides, broken links, stale index entries",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "strict", Usage: "Stop at the first violation"},
					&cli.BoolFlag{Name: "watch", Usage: "Re-validate whenever the tree changes"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					return app.RunValidate(ctx, cmd.Bool("strict"), cmd.Bool("watch"))
				},
			},
			{
				Name:  "adopt",
				Usage: "Merge the standards template into a downstream project's config file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Usage: "Adoption mode: fresh, merge, or pinned"},
					&cli.StringFlag{Name: "config-file", Usage: "Downstream file to merge into"},
					&cli.BoolFlag{Name: "force", Usage: "Overwrite managed blocks with local edits"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					return app.RunAdopt(ctx, internal.AdoptOverrides{
						Mode:       cmd.String("mode"),
						ConfigFile: cmd.String("config-file"),
						Force:      cmd.Bool("force"),
					})
				},
			},
			{
				Name:      "pin",
				Usage:     "Create an immutable, hashed snapshot of the standards tree",
				ArgsUsage: "<version-tag>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("usage: pin <version-tag>")
					}
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					return app.RunPin(ctx, cmd.Args().First())
				},
			},
			{
				Name:      "verify-pin",
				Usage:     "Verify a snapshot's integrity against its manifest",
				ArgsUsage: "<version-tag>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("usage: verify-pin <version-tag>")
					}
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					return app.RunVerifyPin(ctx, cmd.Args().First())
				},
			},
			{
				Name:      "diff-pins",
				Usage:     "List files added, removed, or modified between two snapshots",
				ArgsUsage: "<version-a> <version-b>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return fmt.Errorf("usage: diff-pins <version-a> <version-b>")
					}
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					return app.RunDiffPins(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
				},
			},
			{
				Name:  "simulate",
				Usage: "Run the scripted adoption scenarios in disposable sandboxes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "scenario", Usage: "Run only the named scenario"},
					&cli.IntFlag{Name: "parallel", Usage: "Max concurrent scenarios", Value: 1},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					return app.RunSimulate(ctx, cmd.String("scenario"), int(cmd.Int("parallel")))
				},
			},
			{
				Name:  "mcp",
				Usage: "Serve the validator and adoption tools over stdio for AI agents",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := loadApp(cmd)
					if err != nil {
						return err
					}
					return app.RunMCP(ctx)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
