package validator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/117503445/genpayload/pkg/imagestream"
	"github.com/117503445/genpayload/pkg/types"
	"github.com/117503445/goutils"
	"github.com/distribution/reference"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// stream is one ImageStream file with its mirror list
type stream struct {
	key     types.ArchKey
	doc     types.ImageStream
	mirrors map[string]struct{}
}

// ValidateOutputDir checks every mirror list and ImageStream found in dir
//
// Every ImageStream must be well formed, every tag must point at a mirrored tagged
// destination, and every arch carrying the fallback image must expose the same tag
// names as the reference arch of the same privacy.
func ValidateOutputDir(ctx context.Context, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, imagestream.StreamFileName("*")))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no imagestream files found in %s", dir)
	}

	keys := make([]types.ArchKey, 0, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(f), "image_stream."), ".yaml")
		keys = append(keys, types.ParseArchKey(name))
	}
	return ValidateKeys(ctx, dir, keys)
}

// ValidateKeys checks the files of the given keys in dir and ignores any other file
//
// The reference arch comparison only uses streams among keys. No keys is not an error.
func ValidateKeys(ctx context.Context, dir string, keys []types.ArchKey) error {
	logger := log.Ctx(ctx)

	streams := make(map[types.ArchKey]*stream, len(keys))
	var errs []error
	for _, key := range keys {
		s, err := readStream(dir, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		streams[s.key] = s
		logger.Info().
			Str("phase", "validate").
			Str("key", s.key.String()).
			Int("tags", len(s.doc.Spec.Tags)).
			Int("mirrors", len(s.mirrors)).
			Msg("Read imagestream")
	}

	for _, key := range keys {
		s, ok := streams[key]
		if !ok {
			continue
		}
		errs = append(errs, s.check()...)
		ref, ok := streams[s.key.Reference()]
		if !ok || s.key.IsReference() || !slices.Contains(s.doc.TagNames(), imagestream.FallbackTag) {
			continue
		}
		want, got := sortedNames(ref.doc), sortedNames(s.doc)
		if !slices.Equal(want, got) {
			errs = append(errs, fmt.Errorf("%s: tags %v do not match %s tags %v", s.key, got, ref.key, want))
		}
	}
	return errors.Join(errs...)
}

func readStream(dir string, key types.ArchKey) (*stream, error) {
	path := filepath.Join(dir, imagestream.StreamFileName(key.String()))
	base := filepath.Base(path)
	if !goutils.FileExists(path) {
		return nil, fmt.Errorf("%s: imagestream %s is missing", key, base)
	}

	text, err := goutils.ReadText(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", base, err)
	}
	s := &stream{key: key, mirrors: map[string]struct{}{}}
	if err := yaml.Unmarshal([]byte(text), &s.doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", base, err)
	}

	mirrorPath := filepath.Join(dir, imagestream.MirrorFileName(key.String()))
	if !goutils.FileExists(mirrorPath) {
		return nil, fmt.Errorf("%s: mirror list %s is missing", key, filepath.Base(mirrorPath))
	}
	lines, err := goutils.ReadText(mirrorPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(mirrorPath), err)
	}
	for i, line := range strings.Split(strings.TrimSpace(lines), "\n") {
		if line == "" {
			continue
		}
		src, dest, ok := strings.Cut(line, "=")
		if !ok || src == "" || dest == "" {
			return nil, fmt.Errorf("%s:%d: malformed mirror line %q", filepath.Base(mirrorPath), i+1, line)
		}
		s.mirrors[dest] = struct{}{}
	}
	return s, nil
}

func (s *stream) check() []error {
	var errs []error
	if s.doc.Kind != types.ImageStreamKind || s.doc.APIVersion != types.ImageStreamAPIVersion {
		errs = append(errs, fmt.Errorf("%s: unexpected kind %q apiVersion %q", s.key, s.doc.Kind, s.doc.APIVersion))
	}
	for _, tag := range s.doc.Spec.Tags {
		if tag.From.Kind != types.DockerImageKind {
			errs = append(errs, fmt.Errorf("%s: tag %s has kind %q", s.key, tag.Name, tag.From.Kind))
			continue
		}
		ref, err := reference.Parse(tag.From.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: tag %s: %w", s.key, tag.Name, err))
			continue
		}
		if _, ok := ref.(reference.Tagged); !ok {
			errs = append(errs, fmt.Errorf("%s: tag %s destination %s has no tag", s.key, tag.Name, tag.From.Name))
			continue
		}
		if _, ok := s.mirrors[tag.From.Name]; !ok {
			errs = append(errs, fmt.Errorf("%s: tag %s destination %s is not mirrored", s.key, tag.Name, tag.From.Name))
		}
	}
	return errs
}

func sortedNames(doc types.ImageStream) []string {
	names := doc.TagNames()
	slices.Sort(names)
	return names
}
