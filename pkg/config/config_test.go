package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/117503445/genpayload/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupYAML = `
candidate_tag: rhaos-4.2-rhel-7-candidate
public_upstreams:
  - private: https://github.com/openshift-priv
    public: https://github.com/openshift
organization: my-org
images:
  - name: ose-cli
    component: openshift-enterprise-cli-container
  - name: ose-kuryr
    tag: rhaos-4.2-rhel-8-candidate
  - name: my-operator
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeFile(t, "group.yml", groupYAML))
	require.NoError(t, err)

	assert.True(t, cfg.PublicUpstreamsEnabled())
	assert.Equal(t, "quay.io", cfg.Registry, "defaults survive partial files")
	assert.Equal(t, "my-org", cfg.Organization)
	assert.Equal(t, "ocp-v4.0-art-dev", cfg.Repository)

	assert.Equal(t, []types.ImageDescriptor{
		{ShortName: "ose-cli", BuildTag: "rhaos-4.2-rhel-7-candidate", ComponentName: "openshift-enterprise-cli-container"},
		{ShortName: "ose-kuryr", BuildTag: "rhaos-4.2-rhel-8-candidate", ComponentName: "ose-kuryr-container"},
		{ShortName: "my-operator", BuildTag: "rhaos-4.2-rhel-7-candidate", ComponentName: "my-operator-container"},
	}, cfg.ImageDescriptors())
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"bad yaml", "images: [\n"},
		{"missing name", "candidate_tag: t\nimages:\n  - tag: x\n"},
		{"missing tag", "images:\n  - name: ose-cli\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "group.yml", tc.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestPublicUpstreamsDisabled(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeFile(t, "group.yml", "candidate_tag: t\n"))
	require.NoError(t, err)
	assert.False(t, cfg.PublicUpstreamsEnabled())
	assert.Empty(t, cfg.ImageDescriptors())
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, ".env", "KOJI_HUB_URL=https://hub.example.com/kojihub\n")
	t.Setenv(EnvHubURL, "")
	os.Unsetenv(EnvHubURL)

	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "https://hub.example.com/kojihub", os.Getenv(EnvHubURL))
}
