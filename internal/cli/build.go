package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sichatlabs/sichat-deploy/internal/builder"
	"github.com/sichatlabs/sichat-deploy/internal/config"
	"github.com/sichatlabs/sichat-deploy/internal/domain/artifact"
)

func newBuildCmd() *cobra.Command {
	var (
		sourceDir string
		manifest  string
		buildArgs []string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and push a homeserver image without deploying it",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			logger, err := newCLILogger(cfg)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(exitOther)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b := builder.NewDockerBuilder(cfg.BuilderImageRepo, cfg.BuilderDockerfile, logger)
			art, err := b.Build(ctx, artifact.SourceRef{
				Dir:          sourceDir,
				ManifestPath: manifest,
			}, parseBuildArgs(buildArgs))
			if err != nil {
				fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
				os.Exit(exitBuildFailed)
			}

			fmt.Println(art.Ref())
		},
	}

	cmd.Flags().StringVar(&sourceDir, "source", ".", "Source directory")
	cmd.Flags().StringVar(&manifest, "manifest", "Cargo.lock", "Dependency manifest used for the build cache key")
	cmd.Flags().StringArrayVar(&buildArgs, "build-arg", nil, "Build argument in KEY=VALUE form (repeatable)")

	return cmd
}

func parseBuildArgs(pairs []string) artifact.BuildArgs {
	if len(pairs) == 0 {
		return nil
	}
	out := make(artifact.BuildArgs, len(pairs))
	for _, p := range pairs {
		key, value, _ := strings.Cut(p, "=")
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}
