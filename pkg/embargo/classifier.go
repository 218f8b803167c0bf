package embargo

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/117503445/genpayload/pkg/types"
	"github.com/rs/zerolog/log"
)

const (
	// ShippedTagSuffix marks advisory tags of released builds, e.g. "RHBA-2020:2713-released"
	ShippedTagSuffix = "-released"
	// EmbargoMarker marks embargoed content in a release string
	EmbargoMarker = ".p1"
)

// Session is the subset of build system queries used for classification
type Session interface {
	TagsForBuilds(ctx context.Context, buildIDs []int) ([][]string, error)
	RpmsInArchives(ctx context.Context, archiveIDs []int) ([][]types.RpmRecord, error)
}

// BuildSet is a set of build ids
type BuildSet map[int]struct{}

func (s BuildSet) Add(id int) { s[id] = struct{}{} }

func (s BuildSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order
func (s BuildSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsShipped reports whether any tag marks a released build
func IsShipped(tags []string) bool {
	for _, tag := range tags {
		if strings.HasSuffix(tag, ShippedTagSuffix) {
			return true
		}
	}
	return false
}

// Classifier finds embargoed image builds
//
// The shipping status of bundled packages is cached for the lifetime of the classifier.
type Classifier struct {
	session Session
	cache   *ShipCache
}

// NewClassifier creates a classifier with its own empty cache
func NewClassifier(session Session) *Classifier {
	return &Classifier{session: session, cache: NewShipCache()}
}

// Cache returns the package shipping-status cache
func (c *Classifier) Cache() *ShipCache {
	return c.cache
}

// FindEmbargoedBuilds returns the ids of the resolved builds that are embargoed
//
// Shipped builds are never embargoed. Unshipped builds with a ".p1" release are
// embargoed directly; the rest are embargoed when they bundle an unshipped ".p1" rpm.
func (c *Classifier) FindEmbargoedBuilds(ctx context.Context, imageBuilds []types.ImageBuild) (BuildSet, error) {
	logger := log.Ctx(ctx)
	embargoed := BuildSet{}

	var builds []*types.Build
	seen := BuildSet{}
	for _, ib := range imageBuilds {
		if ib.Build == nil || seen.Has(ib.Build.ID) {
			continue
		}
		seen.Add(ib.Build.ID)
		builds = append(builds, ib.Build)
	}
	if len(builds) == 0 {
		return embargoed, nil
	}

	tags, err := c.buildTags(ctx, builds)
	if err != nil {
		return nil, err
	}

	suspects := BuildSet{}
	for i, b := range builds {
		if IsShipped(tags[i]) {
			continue
		}
		if strings.HasSuffix(b.Release, EmbargoMarker) {
			logger.Info().Str("phase", "embargo").Int("build_id", b.ID).Str("build", b.VersionRelease()).Msg("Image build is embargoed by release marker")
			embargoed.Add(b.ID)
			continue
		}
		suspects.Add(b.ID)
	}

	if err := c.checkRpms(ctx, imageBuilds, suspects, embargoed); err != nil {
		return nil, err
	}

	logger.Info().Str("phase", "embargo").Int("embargoed", len(embargoed)).Msg("Found embargoed image builds")
	return embargoed, nil
}

// buildTags returns the tag names of each build, in order
//
// Builds already carrying Tags are not queried; the rest are fetched in one query.
// Builds are not modified.
func (c *Classifier) buildTags(ctx context.Context, builds []*types.Build) ([][]string, error) {
	tags := make([][]string, len(builds))
	var ids, index []int
	for i, b := range builds {
		if b.Tags != nil {
			tags[i] = b.Tags
			continue
		}
		ids = append(ids, b.ID)
		index = append(index, i)
	}
	if len(ids) == 0 {
		return tags, nil
	}

	log.Ctx(ctx).Info().Str("phase", "embargo").Int("builds", len(ids)).Msg("Filtering out shipped image builds")
	tagLists, err := c.session.TagsForBuilds(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get image build tags: %w", err)
	}
	if len(tagLists) != len(ids) {
		return nil, fmt.Errorf("got tags for %d image builds, expected %d", len(tagLists), len(ids))
	}
	for j, i := range index {
		tags[i] = tagLists[j]
	}
	return tags, nil
}

// checkRpms adds suspects bundling unshipped embargoed rpms to embargoed
func (c *Classifier) checkRpms(ctx context.Context, imageBuilds []types.ImageBuild, suspects, embargoed BuildSet) error {
	logger := log.Ctx(ctx)
	if len(suspects) == 0 {
		return nil
	}

	var archives []types.Archive
	seen := map[int]struct{}{}
	for _, ib := range imageBuilds {
		for _, ar := range ib.Archives {
			if !suspects.Has(ar.BuildID) {
				continue
			}
			if _, ok := seen[ar.ID]; ok {
				continue
			}
			seen[ar.ID] = struct{}{}
			archives = append(archives, ar)
		}
	}
	if len(archives) == 0 {
		return nil
	}

	logger.Info().Str("phase", "embargo").Int("builds", len(suspects)).Int("archives", len(archives)).Msg("Fetching rpms in image builds")
	archiveIDs := make([]int, len(archives))
	for i, ar := range archives {
		archiveIDs[i] = ar.ID
	}
	rpmLists, err := c.session.RpmsInArchives(ctx, archiveIDs)
	if err != nil {
		return fmt.Errorf("failed to list image rpms: %w", err)
	}
	if len(rpmLists) != len(archives) {
		return fmt.Errorf("got rpms for %d archives, expected %d", len(rpmLists), len(archives))
	}

	// image build id -> embargo-marked rpm build ids
	marked := map[int][]int{}
	var all []int
	for i, rpms := range rpmLists {
		for _, rpm := range rpms {
			if !strings.Contains(rpm.Release, EmbargoMarker) {
				continue
			}
			marked[archives[i].BuildID] = append(marked[archives[i].BuildID], rpm.BuildID)
			all = append(all, rpm.BuildID)
		}
	}

	if err := c.resolveShipped(ctx, all); err != nil {
		return err
	}

	for buildID, rpmBuildIDs := range marked {
		for _, id := range rpmBuildIDs {
			if shipped, _ := c.cache.Get(id); !shipped {
				logger.Info().Str("phase", "embargo").Int("build_id", buildID).Int("rpm_build_id", id).Msg("Image build bundles an unshipped embargoed rpm")
				embargoed.Add(buildID)
				break
			}
		}
	}
	return nil
}

// resolveShipped fills the cache for every rpm build id not yet cached, in one query
func (c *Classifier) resolveShipped(ctx context.Context, rpmBuildIDs []int) error {
	missing := c.cache.Missing(rpmBuildIDs)
	if len(missing) == 0 {
		return nil
	}
	log.Ctx(ctx).Info().Str("phase", "embargo").Ints("rpm_build_ids", missing).Msg("Checking if rpms are shipped")

	tagLists, err := c.session.TagsForBuilds(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to get rpm build tags: %w", err)
	}
	if len(tagLists) != len(missing) {
		return fmt.Errorf("got tags for %d rpm builds, expected %d", len(tagLists), len(missing))
	}
	for i, id := range missing {
		c.cache.Set(id, IsShipped(tagLists[i]))
	}
	return nil
}
