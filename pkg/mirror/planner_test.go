package mirror

import (
	"context"
	"testing"

	"github.com/117503445/genpayload/pkg/embargo"
	"github.com/117503445/genpayload/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archive(buildID int, arch, digest string, pullspecs ...string) types.Archive {
	return types.Archive{BuildID: buildID, Arch: arch, Pullspecs: pullspecs, ManifestDigest: digest}
}

func image(name string, id int, archives ...types.Archive) types.ImageBuild {
	return types.ImageBuild{
		Image:    types.ImageDescriptor{ShortName: name},
		Build:    &types.Build{ID: id, Version: "v4.2.0", Release: "201910.p0"},
		Archives: archives,
	}
}

var (
	pub     = types.ArchKey{Arch: "x86_64"}
	priv    = types.ArchKey{Arch: "x86_64", Private: true}
	ppc     = types.ArchKey{Arch: "ppc64le"}
	ppcPriv = types.ArchKey{Arch: "ppc64le", Private: true}
)

func TestDisplayTag(t *testing.T) {
	t.Parallel()

	tag, ok := DisplayTag("ose-cli")
	assert.True(t, ok)
	assert.Equal(t, "cli", tag)

	_, ok = DisplayTag("my-operator")
	assert.False(t, ok)
}

func TestPlan_PublicAndPrivateKeys(t *testing.T) {
	t.Parallel()

	builds := []types.ImageBuild{
		image("ose-cli", 1,
			archive(1, "x86_64", "sha256:c1", "reg/ose-cli:v4.2"),
			archive(1, "ppc64le", "sha256:c2", "reg/ose-cli:v4.2-ppc64le")),
		image("ose-kuryr", 2, archive(2, "x86_64", "sha256:k1", "reg/ose-kuryr:v4.2")),
	}
	embargoed := embargo.BuildSet{}
	embargoed.Add(2)

	plan, err := NewPlanner(true).Plan(context.Background(), builds, embargoed)
	require.NoError(t, err)

	assert.Equal(t, []types.ArchKey{ppc, pub, ppcPriv, priv}, plan.Keys())
	assert.Equal(t, []string{"cli"}, plan.Get(pub).Tags())
	assert.Equal(t, []string{"cli", "kuryr"}, plan.Get(priv).Tags())
	assert.Equal(t, []string{"cli"}, plan.Get(ppcPriv).Tags())

	e, ok := plan.Get(ppc).Get("cli")
	require.True(t, ok)
	assert.Equal(t, "reg/ose-cli:v4.2-ppc64le", e.ImageSrc)
	assert.Equal(t, "sha256:c2", e.Digest.String())
	assert.Equal(t, "201910.p0", e.Release)
	assert.Equal(t, []string{"ose-cli", "ose-kuryr"}, plan.Succeeded)
}

func TestPlan_WithoutPublicUpstreams(t *testing.T) {
	t.Parallel()

	builds := []types.ImageBuild{image("ose-cli", 1, archive(1, "x86_64", "sha256:c1", "reg/ose-cli:v4.2"))}
	plan, err := NewPlanner(false).Plan(context.Background(), builds, nil)
	require.NoError(t, err)
	assert.Equal(t, []types.ArchKey{pub}, plan.Keys())
	assert.Nil(t, plan.Get(priv))
}

func TestPlan_SoftFailures(t *testing.T) {
	t.Parallel()

	builds := []types.ImageBuild{
		{Image: types.ImageDescriptor{ShortName: "ose-nobuild"}},
		image("ose-noarchive", 3),
		image("ose-badpull", 4,
			archive(4, "x86_64", "sha256:b1", "reg/ose-badpull:v4.2"),
			archive(4, "s390x", "sha256:b2", "reg/ose-badpull")),
		image("ose-empty", 5, archive(5, "x86_64", "sha256:e1")),
		image("ose-cli", 1, archive(1, "x86_64", "sha256:c1", "reg/ose-cli:v4.2")),
	}

	plan, err := NewPlanner(false).Plan(context.Background(), builds, embargo.BuildSet{})
	require.NoError(t, err)

	assert.Equal(t, []string{"cli"}, plan.Get(pub).Tags(), "failed images are left out of every key")
	assert.Nil(t, plan.Get(types.ArchKey{Arch: "s390x"}))
	assert.Equal(t, []string{"ose-cli"}, plan.Succeeded)
	assert.Equal(t, []string{"ose-noarchive", "ose-nobuild"}, plan.NoBuilds())

	require.Len(t, plan.Failures, 4)
	assert.Equal(t, types.FailureNoPullspec, plan.Failures[2].Kind)
	assert.Equal(t, "Unable to find pullspecs for: ose-badpull", plan.Failures[2].Reason)
	assert.Equal(t, types.FailureNoPullspec, plan.Failures[3].Kind)
}

func TestPlan_MalformedDigestIsFatal(t *testing.T) {
	t.Parallel()

	builds := []types.ImageBuild{
		image("ose-cli", 1, archive(1, "x86_64", "sha512:c1", "reg/ose-cli:v4.2")),
	}
	_, err := NewPlanner(true).Plan(context.Background(), builds, nil)
	assert.ErrorIs(t, err, types.ErrMalformedDigest)
}

func TestTagMap_ReplaceKeepsPosition(t *testing.T) {
	t.Parallel()

	m := newTagMap()
	m.Set("a", types.MirrorEntry{ImageSrc: "1"})
	m.Set("b", types.MirrorEntry{ImageSrc: "2"})
	m.Set("a", types.MirrorEntry{ImageSrc: "3"})

	assert.Equal(t, []string{"a", "b"}, m.Tags())
	e, _ := m.Get("a")
	assert.Equal(t, "3", e.ImageSrc)
	assert.Equal(t, 2, m.Len())

	var missing *TagMap
	assert.False(t, missing.Has("a"))
	assert.Equal(t, 0, missing.Len())
}
