package types

import (
	"strings"
)

const (
	// ReferenceArch is the baseline architecture every other architecture is matched against
	ReferenceArch = "x86_64"

	privateSuffix = "-priv"
)

// ArchKey identifies one set of mirror entries: an architecture and its privacy
//
// Private keys hold the embargo-inclusive view of the architecture.
type ArchKey struct {
	Arch    string
	Private bool
}

// String renders the key as "{arch}" or "{arch}-priv"
func (k ArchKey) String() string {
	if k.Private {
		return k.Arch + privateSuffix
	}
	return k.Arch
}

// Reference returns the reference architecture key of the same privacy
func (k ArchKey) Reference() ArchKey {
	return ArchKey{Arch: ReferenceArch, Private: k.Private}
}

// IsReference reports whether k is a reference architecture key
func (k ArchKey) IsReference() bool {
	return k.Arch == ReferenceArch
}

// ParseArchKey is the inverse of ArchKey.String
func ParseArchKey(s string) ArchKey {
	if arch, ok := strings.CutSuffix(s, privateSuffix); ok {
		return ArchKey{Arch: arch, Private: true}
	}
	return ArchKey{Arch: s}
}

// StreamName returns the ImageStream name and namespace for this key
//
// x86_64 uses the base values; other arches suffix both with "-{arch}";
// private keys additionally suffix the namespace with "-priv".
func (k ArchKey) StreamName(baseName, baseNamespace string) (name, namespace string) {
	name, namespace = baseName, baseNamespace
	if k.Arch != ReferenceArch {
		name += "-" + k.Arch
		namespace += "-" + k.Arch
	}
	if k.Private {
		namespace += privateSuffix
	}
	return name, namespace
}
