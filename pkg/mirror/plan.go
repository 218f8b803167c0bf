package mirror

import (
	"slices"
	"strings"

	"github.com/117503445/genpayload/pkg/types"
)

// ImagePrefix is the naming-convention prefix every release image must carry
const ImagePrefix = "ose-"

// DisplayTag strips the naming-convention prefix from an image short name
//
// ok is false when the name does not follow the convention.
func DisplayTag(shortName string) (tag string, ok bool) {
	return strings.CutPrefix(shortName, ImagePrefix)
}

// TagMap maps display tags to mirror entries and remembers insertion order
type TagMap struct {
	order   []string
	entries map[string]types.MirrorEntry
}

func newTagMap() *TagMap {
	return &TagMap{entries: make(map[string]types.MirrorEntry)}
}

// Set inserts or replaces an entry; a replaced tag keeps its position
func (m *TagMap) Set(tag string, entry types.MirrorEntry) {
	if _, ok := m.entries[tag]; !ok {
		m.order = append(m.order, tag)
	}
	m.entries[tag] = entry
}

// Get returns the entry of a display tag
func (m *TagMap) Get(tag string) (types.MirrorEntry, bool) {
	if m == nil {
		return types.MirrorEntry{}, false
	}
	e, ok := m.entries[tag]
	return e, ok
}

// Has reports whether a display tag is present
func (m *TagMap) Has(tag string) bool {
	_, ok := m.Get(tag)
	return ok
}

// Tags returns the display tags in insertion order
func (m *TagMap) Tags() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.order)
}

func (m *TagMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Plan holds mirror entries per architecture key plus per-image outcomes
type Plan struct {
	maps map[types.ArchKey]*TagMap

	// Failures lists images that could not be planned
	Failures []types.Failure
	// Succeeded lists short names of images planned into at least one key
	Succeeded []string
}

// NewPlan creates an empty plan
func NewPlan() *Plan {
	return &Plan{maps: make(map[types.ArchKey]*TagMap)}
}

// Add inserts an entry for a display tag under key
func (p *Plan) Add(key types.ArchKey, tag string, entry types.MirrorEntry) {
	m, ok := p.maps[key]
	if !ok {
		m = newTagMap()
		p.maps[key] = m
	}
	m.Set(tag, entry)
}

// Get returns the TagMap of key, or nil when the key has no entries
func (p *Plan) Get(key types.ArchKey) *TagMap {
	return p.maps[key]
}

// Keys returns every key with entries, public keys first, each group sorted by arch
func (p *Plan) Keys() []types.ArchKey {
	keys := make([]types.ArchKey, 0, len(p.maps))
	for k := range p.maps {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b types.ArchKey) int {
		if a.Private != b.Private {
			if a.Private {
				return 1
			}
			return -1
		}
		return strings.Compare(a.Arch, b.Arch)
	})
	return keys
}

// NoBuilds returns the sorted short names of images without a resolved build
func (p *Plan) NoBuilds() []string {
	var names []string
	for _, f := range p.Failures {
		if f.Kind == types.FailureNoBuild {
			names = append(names, f.Image)
		}
	}
	slices.Sort(names)
	return names
}
