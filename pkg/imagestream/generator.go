package imagestream

import (
	"context"
	"errors"
	"fmt"

	"github.com/117503445/genpayload/pkg/mirror"
	"github.com/117503445/genpayload/pkg/types"
	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog/log"
)

// FallbackTag is the display tag of the image substituted for tags an arch does not build
const FallbackTag = "cli"

// ErrNoFallbackImage is returned when an arch needs the fallback image but lacks it
var ErrNoFallbackImage = errors.New("no fallback image")

// Options configures a Generator
type Options struct {
	// Name and Namespace are the x86_64 ImageStream name and namespace
	Name      string
	Namespace string
	// Registry, Org and Repo form the mirroring destination repository
	Registry string
	Org      string
	Repo     string
	// PublicUpstreams tolerates a missing fallback image on public keys
	PublicUpstreams bool
	// ExtraTags, if set, returns additional tag references appended to a key's stream
	ExtraTags func(ctx context.Context, key types.ArchKey) ([]types.TagReference, error)
}

// MirrorLine is one SRC=DEST instruction for `oc image mirror`
type MirrorLine struct {
	Source string
	Dest   string
}

func (l MirrorLine) String() string {
	return l.Source + "=" + l.Dest
}

// Output is everything generated for one architecture key
type Output struct {
	Key     types.ArchKey
	Stream  *types.ImageStream
	Mirrors []MirrorLine
	// Substituted lists tags pointing at the fallback image
	Substituted []string
}

// Generator produces ImageStreams and mirror lists from a mirror plan
type Generator struct {
	opts Options
	repo reference.Named
}

// NewGenerator creates a generator; the destination repository must be a valid reference
//
// The repository name is used as given: Registry is kept as the host even when it has
// no dot or port, and no docker.io normalization is applied.
func NewGenerator(opts Options) (*Generator, error) {
	repo, err := reference.WithName(fmt.Sprintf("%s/%s/%s", opts.Registry, opts.Org, opts.Repo))
	if err != nil {
		return nil, fmt.Errorf("invalid destination repository: %w", err)
	}
	if domain := reference.Domain(repo); domain != opts.Registry {
		return nil, fmt.Errorf("invalid destination repository %s: registry %q parsed as %q", repo, opts.Registry, domain)
	}
	return &Generator{opts: opts, repo: repo}, nil
}

// Destination returns the mirroring destination of a manifest digest
//
// "sha256:abc" becomes "{registry}/{org}/{repo}:sha256-abc".
func (g *Generator) Destination(d digest.Digest) (string, error) {
	tagged, err := reference.WithTag(g.repo, types.DigestTag(d))
	if err != nil {
		return "", fmt.Errorf("invalid destination tag for %s: %w", d, err)
	}
	return tagged.String(), nil
}

// Generate builds the ImageStream and mirror list of one key
//
// Tags present on the reference arch but missing on key point at key's fallback image.
func (g *Generator) Generate(ctx context.Context, key types.ArchKey, plan *mirror.Plan) (*Output, error) {
	logger := log.Ctx(ctx)
	tags := plan.Get(key)

	name, namespace := key.StreamName(g.opts.Name, g.opts.Namespace)
	out := &Output{Key: key, Stream: types.NewImageStream(name, namespace)}

	dests := make(map[string]string, tags.Len())
	for _, tag := range tags.Tags() {
		entry, _ := tags.Get(tag)
		dest, err := g.Destination(entry.Digest)
		if err != nil {
			return nil, err
		}
		dests[tag] = dest
		out.Mirrors = append(out.Mirrors, MirrorLine{Source: entry.ImageSrc, Dest: dest})
		out.Stream.AddTag(tag, dest)
	}

	if fallback, ok := dests[FallbackTag]; ok {
		for _, tag := range plan.Get(key.Reference()).Tags() {
			if tags.Has(tag) {
				continue
			}
			logger.Warn().
				Str("phase", "imagestream").
				Str("key", key.String()).
				Str("tag", tag).
				Msgf("Unable to find tag %s for arch %s; substituting %s image", tag, key.Arch, FallbackTag)
			out.Stream.AddTag(tag, fallback)
			out.Substituted = append(out.Substituted, tag)
		}
	} else if g.opts.PublicUpstreams && !key.Private {
		logger.Warn().
			Str("phase", "imagestream").
			Str("key", key.String()).
			Msgf("Unable to find %s tag in %s imagestream; is the %s image embargoed?", FallbackTag, key, FallbackTag)
	} else {
		return nil, fmt.Errorf("%w: a dummy image is required on arch %s (%s), but tag %q is missing", ErrNoFallbackImage, key.Arch, key, FallbackTag)
	}

	if g.opts.ExtraTags != nil {
		extra, err := g.opts.ExtraTags(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to get extra tags for %s: %w", key, err)
		}
		out.Stream.Spec.Tags = append(out.Stream.Spec.Tags, extra...)
	}

	logger.Info().
		Str("phase", "imagestream").
		Str("key", key.String()).
		Str("name", name).
		Str("namespace", namespace).
		Int("tags", len(out.Stream.Spec.Tags)).
		Int("substituted", len(out.Substituted)).
		Msg("Generated imagestream")
	return out, nil
}
