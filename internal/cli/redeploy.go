package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	nomadAdapter "github.com/sichatlabs/sichat-deploy/internal/adapter/orchestration/nomad"
	"github.com/sichatlabs/sichat-deploy/internal/builder"
	"github.com/sichatlabs/sichat-deploy/internal/config"
	"github.com/sichatlabs/sichat-deploy/internal/deploylock"
	"github.com/sichatlabs/sichat-deploy/internal/domain/artifact"
	"github.com/sichatlabs/sichat-deploy/internal/domain/volume"
	"github.com/sichatlabs/sichat-deploy/internal/prober"
	"github.com/sichatlabs/sichat-deploy/internal/usecase/deployment"
	"github.com/sichatlabs/sichat-deploy/pkg/matrixclient"
	"github.com/sichatlabs/sichat-deploy/pkg/nomad"
	"github.com/sichatlabs/sichat-deploy/pkg/snowflake"
)

// Exit codes distinguish the phase that failed so callers can react
// without parsing output.
const (
	exitOK           = 0
	exitBuildFailed  = 10
	exitAmbiguous    = 11
	exitDrainTimeout = 12
	exitStartFailed  = 13
	exitProbeFailed  = 14
	exitOther        = 1
)

func newRedeployCmd() *cobra.Command {
	var (
		service    string
		image      string
		volumeName string
		region     string
		endpoint   string
		buildFirst bool
		sourceDir  string
		manifest   string
	)

	cmd := &cobra.Command{
		Use:   "redeploy",
		Short: "Replace the running homeserver instance with a new image",
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(runRedeploy(redeployOpts{
				service:    service,
				image:      image,
				volumeName: volumeName,
				region:     region,
				endpoint:   endpoint,
				buildFirst: buildFirst,
				sourceDir:  sourceDir,
				manifest:   manifest,
			}))
		},
	}

	cmd.Flags().StringVar(&service, "service", "sichat", "Service name to redeploy")
	cmd.Flags().StringVar(&image, "image", "", "Image reference to deploy (defaults to the configured version)")
	cmd.Flags().StringVar(&volumeName, "volume", "", "Durable volume to attach (defaults to the configured volume)")
	cmd.Flags().StringVar(&region, "region", "", "Region of the volume (defaults to the configured region)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Probe endpoint override")
	cmd.Flags().BoolVar(&buildFirst, "build", false, "Build and push the image before deploying")
	cmd.Flags().StringVar(&sourceDir, "source", ".", "Source directory for --build")
	cmd.Flags().StringVar(&manifest, "manifest", "Cargo.lock", "Dependency manifest used for the build cache key")

	return cmd
}

type redeployOpts struct {
	service    string
	image      string
	volumeName string
	region     string
	endpoint   string
	buildFirst bool
	sourceDir  string
	manifest   string
}

func runRedeploy(opts redeployOpts) int {
	cfg := config.Load()
	logger, err := newCLILogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitOther
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	imageRef := opts.image
	if opts.buildFirst {
		b := builder.NewDockerBuilder(cfg.BuilderImageRepo, cfg.BuilderDockerfile, logger)
		art, err := b.Build(ctx, artifact.SourceRef{
			Dir:          opts.sourceDir,
			ManifestPath: opts.manifest,
		}, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redeploy failed in build phase: %v\n", err)
			return exitBuildFailed
		}
		imageRef = art.Ref()
		fmt.Printf("built %s\n", imageRef)
	}

	nomadClient, err := nomad.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to orchestrator: %v\n", err)
		return exitOther
	}
	node, err := snowflake.NewNode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init id generator: %v\n", err)
		return exitOther
	}

	registry := nomadAdapter.NewAdapter(nomadClient, node)
	p := prober.New(matrixclient.NewFromEnv(), prober.DefaultConfig(), logger)
	locks := deploylock.NewLocalLock()

	uc := deployment.NewRedeployUseCase(registry, p, locks, nil, nil, cfg, logger)

	vol := volume.Binding{Name: opts.volumeName, Region: opts.region}
	if vol.Name == "" {
		vol.Name = cfg.DefaultVolumeName
	}
	if vol.Region == "" {
		vol.Region = cfg.DefaultRegion
	}

	attempt, err := uc.Execute(ctx, deployment.Request{
		ServiceName: opts.service,
		ImageRef:    imageRef,
		Volume:      vol,
		Endpoint:    opts.endpoint,
	})
	if err != nil {
		return reportFailure(attempt, err)
	}

	fmt.Printf("redeploy succeeded: %s running %s on volume %s\n", opts.service, attempt.ImageRef, vol.Name)
	if attempt.Downtime > 0 {
		fmt.Printf("downtime: %s\n", attempt.Downtime)
	}
	return exitOK
}

func reportFailure(attempt *deployment.DeploymentAttempt, err error) int {
	phase := "unknown"
	if attempt != nil {
		phase = string(attempt.FailedPhase)
	}

	var (
		buildErr  *deployment.BuildError
		ambiguous *deployment.RegistryAmbiguityError
		drainErr  *deployment.DrainTimeoutError
		startErr  *deployment.StartError
		probeErr  *deployment.ProbeFailure
	)

	switch {
	case errors.As(err, &buildErr):
		fmt.Fprintf(os.Stderr, "redeploy failed in build phase: %v\n", err)
		return exitBuildFailed
	case errors.As(err, &ambiguous):
		fmt.Fprintf(os.Stderr, "redeploy aborted: %v (resolve manually before retrying)\n", err)
		return exitAmbiguous
	case errors.As(err, &drainErr):
		fmt.Fprintf(os.Stderr, "redeploy failed in drain phase: %v (no new instance was started)\n", err)
		return exitDrainTimeout
	case errors.As(err, &startErr):
		fmt.Fprintf(os.Stderr, "redeploy failed in start phase: %v (SERVICE IS DOWN, intervene now)\n", err)
		return exitStartFailed
	case errors.As(err, &probeErr):
		fmt.Fprintf(os.Stderr, "redeploy failed in probe phase: %v (instance left running for inspection)\n", err)
		return exitProbeFailed
	default:
		fmt.Fprintf(os.Stderr, "redeploy failed in %s phase: %v\n", phase, err)
		return exitOther
	}
}

func newCLILogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
