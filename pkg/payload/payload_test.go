package payload

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/117503445/genpayload/pkg/imagestream"
	"github.com/117503445/genpayload/pkg/koji"
	"github.com/117503445/genpayload/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession is an in-memory build system keyed by component name
type fakeSession struct {
	builds   map[string]*types.Build
	archives map[int][]types.Archive
	tags     map[int][]string
	rpms     map[int][]types.RpmRecord

	events []*int
}

func (f *fakeSession) LatestBuilds(ctx context.Context, pairs []koji.TagComponent, event *int) ([]*types.Build, error) {
	f.events = append(f.events, event)
	out := make([]*types.Build, len(pairs))
	for i, p := range pairs {
		out[i] = f.builds[p.Component]
	}
	return out, nil
}

func (f *fakeSession) ArchivesForBuilds(ctx context.Context, ids []int, kind string) ([][]types.Archive, error) {
	out := make([][]types.Archive, len(ids))
	for i, id := range ids {
		out[i] = f.archives[id]
	}
	return out, nil
}

func (f *fakeSession) TagsForBuilds(ctx context.Context, ids []int) ([][]string, error) {
	out := make([][]string, len(ids))
	for i, id := range ids {
		out[i] = f.tags[id]
	}
	return out, nil
}

func (f *fakeSession) RpmsInArchives(ctx context.Context, ids []int) ([][]types.RpmRecord, error) {
	out := make([][]types.RpmRecord, len(ids))
	for i, id := range ids {
		out[i] = f.rpms[id]
	}
	return out, nil
}

func arc(id, buildID int, arch, digest string) types.Archive {
	return types.Archive{
		ID:             id,
		BuildID:        buildID,
		Arch:           arch,
		Pullspecs:      []string{"registry-proxy/rh-osbs/openshift-" + arch + "@" + digest, "registry-proxy/rh-osbs/openshift:" + arch},
		ManifestDigest: digest,
	}
}

func newSession() *fakeSession {
	return &fakeSession{
		builds: map[string]*types.Build{
			"ose-cli-container":    {ID: 1, Version: "v4.2.0", Release: "1.p0"},
			"ose-kuryr-container":  {ID: 2, Version: "v4.2.0", Release: "1.p0"},
			"ose-secret-container": {ID: 3, Version: "v4.2.0", Release: "1.p1"},
		},
		archives: map[int][]types.Archive{
			1: {arc(10, 1, "x86_64", "sha256:c86"), arc(11, 1, "ppc64le", "sha256:cppc")},
			2: {arc(20, 2, "x86_64", "sha256:k86")},
			3: {arc(30, 3, "x86_64", "sha256:s86"), arc(31, 3, "ppc64le", "sha256:sppc")},
		},
		tags: map[int][]string{},
		rpms: map[int][]types.RpmRecord{},
	}
}

func images() []types.ImageDescriptor {
	return []types.ImageDescriptor{
		{ShortName: "ose-cli", BuildTag: "t", ComponentName: "ose-cli-container"},
		{ShortName: "ose-kuryr", BuildTag: "t", ComponentName: "ose-kuryr-container"},
		{ShortName: "ose-secret", BuildTag: "t", ComponentName: "ose-secret-container"},
		{ShortName: "ose-ghost", BuildTag: "t", ComponentName: "ose-ghost-container"},
		{ShortName: "my-operator", BuildTag: "t", ComponentName: "my-operator-container"},
	}
}

func options(publicUpstreams bool) Options {
	return Options{
		PublicUpstreams: publicUpstreams,
		Stream: imagestream.Options{
			Name:      "4.2-art-latest",
			Namespace: "ocp",
			Registry:  "quay.io",
			Org:       "openshift-release-dev",
			Repo:      "ocp-v4.0-art-dev",
		},
	}
}

func outputByKey(t *testing.T, r *Result, key string) *imagestream.Output {
	t.Helper()
	for _, out := range r.Outputs {
		if out.Key.String() == key {
			return out
		}
	}
	t.Fatalf("no output for %s", key)
	return nil
}

func TestSplitByNaming(t *testing.T) {
	t.Parallel()

	valid, invalid := SplitByNaming(images())
	assert.Len(t, valid, 4)
	assert.Equal(t, []string{"my-operator"}, invalid)
}

func TestGenerate_WithPublicUpstreams(t *testing.T) {
	t.Parallel()

	session := newSession()
	event := 31337
	opts := options(true)
	opts.Event = &event

	r, err := Generate(context.Background(), session, images(), opts)
	require.NoError(t, err)
	require.Len(t, session.events, 1)
	assert.Equal(t, 31337, *session.events[0])

	assert.Equal(t, []int{3}, r.Embargoed.Sorted())
	assert.Equal(t, []string{"my-operator"}, r.InvalidNames)
	assert.Equal(t, []string{"ose-ghost"}, r.Plan.NoBuilds())

	keys := make([]string, len(r.Outputs))
	for i, out := range r.Outputs {
		keys[i] = out.Key.String()
	}
	assert.Equal(t, []string{"ppc64le", "x86_64", "ppc64le-priv", "x86_64-priv"}, keys)

	assert.Equal(t, []string{"cli", "kuryr"}, outputByKey(t, r, "x86_64").Stream.TagNames())
	assert.Equal(t, []string{"cli", "kuryr", "secret"}, outputByKey(t, r, "x86_64-priv").Stream.TagNames())
	assert.Equal(t, []string{"cli", "kuryr"}, outputByKey(t, r, "ppc64le").Stream.TagNames())
	assert.Equal(t, []string{"cli", "secret", "kuryr"}, outputByKey(t, r, "ppc64le-priv").Stream.TagNames())

	for _, out := range r.Outputs {
		for _, tag := range out.Stream.TagNames() {
			assert.NotEqual(t, "my-operator", tag)
		}
	}
}

func TestGenerate_WithoutPublicUpstreams(t *testing.T) {
	t.Parallel()

	session := newSession()
	r, err := Generate(context.Background(), session, images(), options(false))
	require.NoError(t, err)

	assert.Empty(t, r.Embargoed)
	require.Len(t, r.Outputs, 2)
	assert.Equal(t, []string{"cli", "secret", "kuryr"}, outputByKey(t, r, "ppc64le").Stream.TagNames())
	assert.Equal(t, "ocp-ppc64le", outputByKey(t, r, "ppc64le").Stream.Metadata.Namespace)
}

func TestGenerate_MissingFallback(t *testing.T) {
	t.Parallel()

	// cli is embargoed: its public streams lack the fallback image
	session := newSession()
	session.builds["ose-cli-container"].Release = "1.p1"

	r, err := Generate(context.Background(), session, images(), options(true))
	require.NoError(t, err)
	assert.Equal(t, []string{"kuryr"}, outputByKey(t, r, "x86_64").Stream.TagNames())

	// without public upstreams a missing cli on any arch is fatal
	session = newSession()
	session.archives[1] = session.archives[1][:1]
	_, err = Generate(context.Background(), session, images(), options(false))
	assert.ErrorIs(t, err, imagestream.ErrNoFallbackImage)
}

func TestGenerate_MalformedDigest(t *testing.T) {
	t.Parallel()

	session := newSession()
	session.archives[2][0].ManifestDigest = "md5:abc"
	_, err := Generate(context.Background(), session, images(), options(false))
	assert.ErrorIs(t, err, types.ErrMalformedDigest)
}

func TestResult_WriteAndSummary(t *testing.T) {
	t.Parallel()

	r, err := Generate(context.Background(), newSession(), images(), options(true))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, r.Write(dir))
	for _, name := range []string{
		"src_dest.x86_64", "src_dest.x86_64-priv", "src_dest.ppc64le", "src_dest.ppc64le-priv",
		"image_stream.x86_64.yaml", "image_stream.ppc64le-priv.yaml",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	var buf bytes.Buffer
	r.Summary(&buf)
	assert.Equal(t, "No builds found for:\n   ose-ghost\nImages skipped due to invalid naming:\n   my-operator\n", buf.String())
}

func TestGenerate_OnlySoftFailures(t *testing.T) {
	t.Parallel()

	only := []types.ImageDescriptor{
		{ShortName: "ose-ghost", BuildTag: "t", ComponentName: "ose-ghost-container"},
		{ShortName: "my-operator", BuildTag: "t", ComponentName: "my-operator-container"},
	}
	r, err := Generate(context.Background(), newSession(), only, options(true))
	require.NoError(t, err)
	assert.Empty(t, r.Outputs)
	assert.Empty(t, r.Keys())

	var buf bytes.Buffer
	r.Summary(&buf)
	assert.Equal(t, "No builds found for:\n   ose-ghost\nImages skipped due to invalid naming:\n   my-operator\n", buf.String())
}
