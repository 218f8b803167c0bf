package koji

import (
	"context"
	"fmt"

	"github.com/117503445/genpayload/pkg/types"
	"github.com/rs/zerolog/log"
)

// TagComponent is one (tag, component) lookup for LatestBuilds
type TagComponent struct {
	Tag       string
	Component string
}

// LatestBuilds returns the latest build of each component in its tag, in input order
//
// A nil entry means no build exists. When event is non-nil the lookup is done as of
// that build system event.
func (c *Client) LatestBuilds(ctx context.Context, pairs []TagComponent, event *int) ([]*types.Build, error) {
	calls := make([]call, len(pairs))
	for i, p := range pairs {
		kw := map[string]interface{}{"package": p.Component}
		if event != nil {
			kw["event"] = *event
		}
		calls[i] = call{method: "getLatestBuilds", params: []interface{}{p.Tag, kwargs(kw)}}
	}

	results, err := c.multicall(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest builds: %w", err)
	}

	builds := make([]*types.Build, len(results))
	for i, r := range results {
		list, err := toList(r)
		if err != nil {
			return nil, fmt.Errorf("getLatestBuilds %s/%s: %w", pairs[i].Tag, pairs[i].Component, err)
		}
		if len(list) > 0 {
			builds[i] = decodeBuild(list[0])
		}
	}
	log.Ctx(ctx).Info().Str("phase", "koji").Int("pairs", len(pairs)).Msg("Fetched latest builds")
	return builds, nil
}

// ArchivesForBuilds lists archives of the given kind for each build id, in input order
//
// Build id 0 stands for a missing build and yields an empty list without a hub call.
func (c *Client) ArchivesForBuilds(ctx context.Context, buildIDs []int, kind string) ([][]types.Archive, error) {
	var calls []call
	var index []int
	for i, id := range buildIDs {
		if id == 0 {
			continue
		}
		calls = append(calls, call{
			method: "listArchives",
			params: []interface{}{kwargs(map[string]interface{}{"buildID": id, "type": kind})},
		})
		index = append(index, i)
	}

	results, err := c.multicall(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	archives := make([][]types.Archive, len(buildIDs))
	for j, r := range results {
		list, err := toList(r)
		if err != nil {
			return nil, fmt.Errorf("listArchives build %d: %w", buildIDs[index[j]], err)
		}
		for _, a := range list {
			archives[index[j]] = append(archives[index[j]], decodeArchive(a))
		}
	}
	return archives, nil
}

// TagsForBuilds returns the tag names of each build, in input order
func (c *Client) TagsForBuilds(ctx context.Context, buildIDs []int) ([][]string, error) {
	calls := make([]call, len(buildIDs))
	for i, id := range buildIDs {
		calls[i] = call{method: "listTags", params: []interface{}{kwargs(map[string]interface{}{"build": id})}}
	}

	results, err := c.multicall(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	tags := make([][]string, len(results))
	for i, r := range results {
		if tags[i], err = decodeTagNames(r); err != nil {
			return nil, fmt.Errorf("listTags build %d: %w", buildIDs[i], err)
		}
	}
	return tags, nil
}

// RpmsInArchives returns the rpms bundled in each image archive, in input order
func (c *Client) RpmsInArchives(ctx context.Context, archiveIDs []int) ([][]types.RpmRecord, error) {
	calls := make([]call, len(archiveIDs))
	for i, id := range archiveIDs {
		calls[i] = call{method: "listRPMs", params: []interface{}{kwargs(map[string]interface{}{"imageID": id})}}
	}

	results, err := c.multicall(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("failed to list rpms: %w", err)
	}

	rpms := make([][]types.RpmRecord, len(results))
	for i, r := range results {
		if rpms[i], err = decodeRpms(r); err != nil {
			return nil, fmt.Errorf("listRPMs archive %d: %w", archiveIDs[i], err)
		}
	}
	return rpms, nil
}
