package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/117503445/genpayload/pkg/config"
	"github.com/117503445/genpayload/pkg/imagestream"
	"github.com/117503445/genpayload/pkg/koji"
	"github.com/117503445/genpayload/pkg/payload"
	"github.com/117503445/genpayload/pkg/validator"
	"github.com/117503445/goutils"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type flags struct {
	groupConfig     string
	envFile         string
	hubURL          string
	isName          string
	isNamespace     string
	registry        string
	organization    string
	repository      string
	eventID         int
	publicUpstreams bool
	outputDir       string
	multicallChunk  int
	parallelism     int
	validate        bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "genpayload",
		Short: "Generate input files for release mirroring",
		Long: `Generates two sets of files per architecture: SRC=DEST mirroring definitions
for 'oc image mirror' (src_dest.{arch}) and ImageStream documents for 'oc apply'
(image_stream.{arch}.yaml). Non-x86_64 arches get a -{arch} suffix on the
ImageStream name and namespace; embargo-inclusive streams get a -priv namespace.

Every arch stream carries the tags of the x86_64 stream; tags an arch does not
build point at that arch's cli image.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			goutils.InitZeroLog()
			ctx := log.Logger.WithContext(cmd.Context())
			err := run(ctx, cmd, f)
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("Payload generation failed")
			}
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.groupConfig, "group-config", "", "group config file (default: group.yml)")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	fs.StringVar(&f.hubURL, "hub", "", "build system hub URL (default: $"+config.EnvHubURL+")")
	fs.StringVar(&f.isName, "is-name", "", "ImageStream .metadata.name value, e.g. '4.2-art-latest'")
	fs.StringVar(&f.isNamespace, "is-namespace", "ocp", "ImageStream .metadata.namespace value")
	fs.StringVar(&f.registry, "registry", "", "registry to mirror into (default from group config)")
	fs.StringVar(&f.organization, "organization", "", "organization to mirror into (default from group config)")
	fs.StringVar(&f.repository, "repository", "", "repository in organization to mirror into (default from group config)")
	fs.IntVar(&f.eventID, "event-id", 0, "choose the latest builds as of this build system event instead of now")
	fs.BoolVar(&f.publicUpstreams, "public-upstreams", false, "override whether embargoed builds are split into -priv streams")
	fs.StringVar(&f.outputDir, "output-dir", ".", "directory to write generated files into")
	fs.IntVar(&f.multicallChunk, "multicall-chunk", 0, "split hub multicalls into chunks of this size (0: no split)")
	fs.IntVar(&f.parallelism, "parallelism", 4, "concurrent hub requests when multicalls are split")
	fs.BoolVar(&f.validate, "validate", true, "validate generated files after writing")
	_ = cmd.MarkFlagRequired("is-name")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, f *flags) error {
	logger := log.Ctx(ctx)

	if err := config.LoadEnv(f.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(f.groupConfig)
	if err != nil {
		return fmt.Errorf("loading group config: %w", err)
	}

	hubURL := f.hubURL
	if hubURL == "" {
		hubURL = os.Getenv(config.EnvHubURL)
	}
	kojiOpts := koji.DefaultOptions()
	kojiOpts.MulticallChunk = f.multicallChunk
	kojiOpts.Parallelism = f.parallelism
	session, err := koji.NewClient(hubURL, kojiOpts)
	if err != nil {
		return err
	}

	opts := payload.Options{
		PublicUpstreams: cfg.PublicUpstreamsEnabled(),
		Stream: imagestream.Options{
			Name:      f.isName,
			Namespace: f.isNamespace,
			Registry:  firstNonEmpty(f.registry, cfg.Registry),
			Org:       firstNonEmpty(f.organization, cfg.Organization),
			Repo:      firstNonEmpty(f.repository, cfg.Repository),
		},
	}
	if cmd.Flags().Changed("public-upstreams") {
		opts.PublicUpstreams = f.publicUpstreams
	}
	if cmd.Flags().Changed("event-id") {
		opts.Event = &f.eventID
	}

	images := cfg.ImageDescriptors()
	logger.Info().
		Str("phase", "init").
		Str("hub", hubURL).
		Int("images", len(images)).
		Bool("public_upstreams", opts.PublicUpstreams).
		Msg("Generating release payload inputs")

	result, err := payload.Generate(ctx, session, images, opts)
	if err != nil {
		return err
	}
	return finish(ctx, cmd.OutOrStdout(), result, f.outputDir, f.validate)
}

// finish writes the result, prints the summary and validates the files just written
//
// A run without outputs has nothing to validate; its soft failures are only reported.
func finish(ctx context.Context, w io.Writer, result *payload.Result, dir string, validate bool) error {
	logger := log.Ctx(ctx)

	if err := result.Write(dir); err != nil {
		return err
	}
	logger.Info().Str("phase", "write").Str("dir", dir).Int("keys", len(result.Outputs)).Msg("Wrote mirroring lists and imagestreams")

	result.Summary(w)

	if !validate {
		return nil
	}
	keys := result.Keys()
	if len(keys) == 0 {
		logger.Warn().Str("phase", "validate").Str("dir", dir).Msg("No imagestreams generated, skipping validation")
		return nil
	}
	if err := validator.ValidateKeys(ctx, dir, keys); err != nil {
		return fmt.Errorf("generated files failed validation: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
