package payload

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/117503445/genpayload/pkg/embargo"
	"github.com/117503445/genpayload/pkg/imagestream"
	"github.com/117503445/genpayload/pkg/koji"
	"github.com/117503445/genpayload/pkg/mirror"
	"github.com/117503445/genpayload/pkg/types"
	"github.com/rs/zerolog/log"
)

// ArchiveKind is the build system archive type of container images
const ArchiveKind = "image"

// Session is the build system queries needed to generate a payload
type Session interface {
	LatestBuilds(ctx context.Context, pairs []koji.TagComponent, event *int) ([]*types.Build, error)
	ArchivesForBuilds(ctx context.Context, buildIDs []int, kind string) ([][]types.Archive, error)
	embargo.Session
}

// Options stores parameters for Generate
type Options struct {
	// Event pins build lookups to a build system event; nil means latest
	Event *int
	// PublicUpstreams enables embargo detection and the private streams
	PublicUpstreams bool
	// Stream configures naming and destinations; its PublicUpstreams is set from above
	Stream imagestream.Options
}

// Result is the generated payload and the per-image report
type Result struct {
	Outputs      []*imagestream.Output
	Plan         *mirror.Plan
	Embargoed    embargo.BuildSet
	InvalidNames []string
}

// SplitByNaming separates images following the naming convention from the rest
//
// Invalid short names are returned sorted.
func SplitByNaming(images []types.ImageDescriptor) (valid []types.ImageDescriptor, invalid []string) {
	for _, img := range images {
		if _, ok := mirror.DisplayTag(img.ShortName); !ok {
			invalid = append(invalid, img.ShortName)
			continue
		}
		valid = append(valid, img)
	}
	slices.Sort(invalid)
	return valid, invalid
}

// Generate resolves builds, finds embargoed ones and produces one output per arch key
//
// Soft per-image failures are collected in the result; malformed build system data or
// a missing mandatory fallback image abort with an error and no outputs.
func Generate(ctx context.Context, session Session, images []types.ImageDescriptor, opts Options) (*Result, error) {
	logger := log.Ctx(ctx)

	opts.Stream.PublicUpstreams = opts.PublicUpstreams
	gen, err := imagestream.NewGenerator(opts.Stream)
	if err != nil {
		return nil, err
	}

	valid, invalid := SplitByNaming(images)
	for _, name := range invalid {
		logger.Warn().Str("phase", "select").Str("image", name).Msg("NOT adding to IS (does not meet name/version conventions)")
	}
	logger.Info().Str("phase", "select").Int("total", len(images)).Int("selected", len(valid)).Msg("Selected images")

	imageBuilds, err := resolve(ctx, session, valid, opts.Event)
	if err != nil {
		return nil, err
	}

	embargoed := embargo.BuildSet{}
	if opts.PublicUpstreams {
		embargoed, err = embargo.NewClassifier(session).FindEmbargoedBuilds(ctx, imageBuilds)
		if err != nil {
			return nil, fmt.Errorf("failed to find embargoed builds: %w", err)
		}
	}

	logger.Info().Str("phase", "plan").Msg("Creating mirroring lists")
	plan, err := mirror.NewPlanner(opts.PublicUpstreams).Plan(ctx, imageBuilds, embargoed)
	if err != nil {
		return nil, err
	}

	result := &Result{Plan: plan, Embargoed: embargoed, InvalidNames: invalid}
	for _, key := range plan.Keys() {
		out, err := gen.Generate(ctx, key, plan)
		if err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, out)
	}
	return result, nil
}

// resolve fetches the latest build and archives of every image as aligned records
func resolve(ctx context.Context, session Session, images []types.ImageDescriptor, event *int) ([]types.ImageBuild, error) {
	logger := log.Ctx(ctx)

	logger.Info().Str("phase", "resolve").Msg("Fetching latest image builds")
	pairs := make([]koji.TagComponent, len(images))
	for i, img := range images {
		pairs[i] = koji.TagComponent{Tag: img.BuildTag, Component: img.ComponentName}
	}
	builds, err := session.LatestBuilds(ctx, pairs, event)
	if err != nil {
		return nil, err
	}
	if len(builds) != len(images) {
		return nil, fmt.Errorf("got %d latest builds for %d images", len(builds), len(images))
	}

	logger.Info().Str("phase", "resolve").Msg("Fetching image archives")
	ids := make([]int, len(builds))
	for i, b := range builds {
		if b != nil {
			ids[i] = b.ID
		}
	}
	archives, err := session.ArchivesForBuilds(ctx, ids, ArchiveKind)
	if err != nil {
		return nil, err
	}
	if len(archives) != len(images) {
		return nil, fmt.Errorf("got %d archive lists for %d images", len(archives), len(images))
	}

	imageBuilds := make([]types.ImageBuild, len(images))
	for i, img := range images {
		imageBuilds[i] = types.ImageBuild{Image: img, Build: builds[i], Archives: archives[i]}
	}
	return imageBuilds, nil
}

// Keys returns the arch keys of the outputs, in output order
func (r *Result) Keys() []types.ArchKey {
	keys := make([]types.ArchKey, len(r.Outputs))
	for i, out := range r.Outputs {
		keys[i] = out.Key
	}
	return keys
}

// Write writes every output into dir
func (r *Result) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, out := range r.Outputs {
		if err := out.WriteFiles(dir); err != nil {
			return err
		}
	}
	return nil
}

// Summary prints images without builds and images skipped for naming
func (r *Result) Summary(w io.Writer) {
	if noBuilds := r.Plan.NoBuilds(); len(noBuilds) > 0 {
		fmt.Fprintln(w, "No builds found for:")
		for _, name := range noBuilds {
			fmt.Fprintf(w, "   %s\n", name)
		}
	}
	var noPullspecs []string
	for _, f := range r.Plan.Failures {
		if f.Kind == types.FailureNoPullspec {
			noPullspecs = append(noPullspecs, f.Image)
		}
	}
	if len(noPullspecs) > 0 {
		slices.Sort(noPullspecs)
		fmt.Fprintln(w, "No usable pullspecs found for:")
		for _, name := range noPullspecs {
			fmt.Fprintf(w, "   %s\n", name)
		}
	}
	if len(r.InvalidNames) > 0 {
		fmt.Fprintln(w, "Images skipped due to invalid naming:")
		for _, name := range r.InvalidNames {
			fmt.Fprintf(w, "   %s\n", name)
		}
	}
}
