package mirror

import (
	"context"
	"fmt"

	"github.com/117503445/genpayload/pkg/types"
	"github.com/rs/zerolog/log"
)

// EmbargoSet reports whether a build is embargoed
type EmbargoSet interface {
	Has(buildID int) bool
}

// Planner builds the per-architecture mirroring maps
type Planner struct {
	// publicUpstreams enables the private (embargo-inclusive) keys
	publicUpstreams bool
}

// NewPlanner creates a planner
func NewPlanner(publicUpstreams bool) *Planner {
	return &Planner{publicUpstreams: publicUpstreams}
}

// Plan maps every resolved image archive to its architecture keys
//
// Images without a build, without archives or with an unusable pullspec are recorded
// in Plan.Failures and left out of every key. A digest that is not sha256 aborts the plan.
func (p *Planner) Plan(ctx context.Context, imageBuilds []types.ImageBuild, embargoed EmbargoSet) (*Plan, error) {
	logger := log.Ctx(ctx)
	plan := NewPlan()

	for _, ib := range imageBuilds {
		name := ib.Image.ShortName
		if ib.Build == nil || len(ib.Archives) == 0 {
			reason := fmt.Sprintf("Unable to find build for: %s", name)
			logger.Error().Str("phase", "plan").Str("image", name).Msg(reason)
			plan.Failures = append(plan.Failures, types.Failure{Image: name, Kind: types.FailureNoBuild, Reason: reason})
			continue
		}

		tag, ok := DisplayTag(name)
		if !ok {
			tag = name
		}

		entries, err := p.entries(ib)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			reason := fmt.Sprintf("Unable to find pullspecs for: %s", name)
			logger.Error().Str("phase", "plan").Str("image", name).Msg(reason)
			plan.Failures = append(plan.Failures, types.Failure{Image: name, Kind: types.FailureNoPullspec, Reason: reason})
			continue
		}

		isEmbargoed := embargoed != nil && embargoed.Has(ib.Build.ID)
		for i, ar := range ib.Archives {
			entry := entries[i]
			if !isEmbargoed {
				logger.Info().
					Str("phase", "plan").
					Str("arch", ar.Arch).
					Str("image_src", entry.ImageSrc).
					Str("tag", tag).
					Msg("Adding image to the public mirroring list")
				plan.Add(types.ArchKey{Arch: ar.Arch}, tag, entry)
			} else {
				logger.Warn().Str("phase", "plan").Str("image_src", entry.ImageSrc).Str("build", ib.Build.VersionRelease()).Msg("Found embargoed image")
			}
			if p.publicUpstreams {
				logger.Info().
					Str("phase", "plan").
					Str("arch", ar.Arch).
					Str("image_src", entry.ImageSrc).
					Str("tag", tag).
					Msg("Adding image to the private mirroring list")
				plan.Add(types.ArchKey{Arch: ar.Arch, Private: true}, tag, entry)
			}
		}
		plan.Succeeded = append(plan.Succeeded, name)
	}
	return plan, nil
}

// entries validates every archive of an image and returns one entry per archive
//
// A nil slice means an archive has no usable pullspec.
func (p *Planner) entries(ib types.ImageBuild) ([]types.MirrorEntry, error) {
	entries := make([]types.MirrorEntry, 0, len(ib.Archives))
	for _, ar := range ib.Archives {
		src, ok := ar.Pullspec()
		if !ok {
			return nil, nil
		}
		d, err := types.ParseManifestDigest(ar.ManifestDigest, src)
		if err != nil {
			return nil, err
		}
		entries = append(entries, types.MirrorEntry{
			Version:  ib.Build.Version,
			Release:  ib.Build.Release,
			ImageSrc: src,
			Digest:   d,
		})
	}
	return entries, nil
}
