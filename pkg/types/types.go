package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

// ImageDescriptor stores the inventory data of one image
type ImageDescriptor struct {
	// ShortName is the image name without registry or org (e.g., "ose-cli")
	ShortName string `yaml:"name"`
	// BuildTag is the candidate build-system tag the image is built into
	BuildTag string `yaml:"tag"`
	// ComponentName is the build-system package name of the image
	ComponentName string `yaml:"component"`
}

// Build stores a build as returned by the build system
//
// Release may carry an embargo marker suffix (".p0" or ".p1").
type Build struct {
	ID      int
	Version string
	Release string
	Tags    []string
}

// VersionRelease returns "{version}-{release}"
func (b *Build) VersionRelease() string {
	return b.Version + "-" + b.Release
}

// Archive stores one per-architecture image archive of a build
type Archive struct {
	ID      int
	BuildID int
	Arch    string
	// Pullspecs lists registry references of the archive; the last one is canonical
	Pullspecs []string
	// ManifestDigest is the docker v2 schema 2 manifest digest (e.g., "sha256:abc...")
	ManifestDigest string
}

// Pullspec returns the canonical source reference and whether it is usable
//
// A usable pullspec is the last entry and contains a tag or digest separator.
func (a Archive) Pullspec() (string, bool) {
	if len(a.Pullspecs) == 0 {
		return "", false
	}
	last := a.Pullspecs[len(a.Pullspecs)-1]
	if !strings.Contains(last, ":") {
		return last, false
	}
	return last, true
}

// RpmRecord stores the fields of a bundled package needed for embargo checks
type RpmRecord struct {
	BuildID int
	Release string
}

// ImageBuild aligns an image with its latest build and that build's archives
//
// Build is nil when no build was found for the image.
type ImageBuild struct {
	Image    ImageDescriptor
	Build    *Build
	Archives []Archive
}

// MirrorEntry stores what is mirrored for one display tag on one architecture key
type MirrorEntry struct {
	Version  string
	Release  string
	ImageSrc string
	Digest   digest.Digest
}

// FailureKind classifies a per-image soft failure
type FailureKind string

const (
	FailureNoBuild    FailureKind = "no-build"
	FailureNoPullspec FailureKind = "no-pullspec"
)

// Failure records a per-image soft failure
type Failure struct {
	Image  string
	Kind   FailureKind
	Reason string
}

// ErrMalformedDigest is returned when the build system reports a digest with an unexpected algorithm
var ErrMalformedDigest = errors.New("unrecognized manifest digest")

// ParseManifestDigest checks that raw is a sha256 digest and returns it
//
// Only the algorithm prefix is checked; the encoded part is passed through as reported.
func ParseManifestDigest(raw, pullspec string) (digest.Digest, error) {
	if !strings.HasPrefix(raw, digest.SHA256.String()+":") {
		return "", fmt.Errorf("%w %q for image %s", ErrMalformedDigest, raw, pullspec)
	}
	return digest.Digest(raw), nil
}

// DigestTag converts a digest into a tag name, e.g. "sha256:abc" -> "sha256-abc"
func DigestTag(d digest.Digest) string {
	return strings.ReplaceAll(d.String(), ":", "-")
}
