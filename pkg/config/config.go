package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/117503445/genpayload/pkg/types"
	"github.com/117503445/goutils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFile = "group.yml"

	// EnvHubURL names the build system hub URL variable
	EnvHubURL = "KOJI_HUB_URL"
)

// PublicUpstream pairs a private source repository with its public counterpart
type PublicUpstream struct {
	Private string `yaml:"private"`
	Public  string `yaml:"public"`
}

// Image is one inventory entry; empty fields fall back to group defaults
type Image struct {
	Name      string `yaml:"name"`
	Tag       string `yaml:"tag"`
	Component string `yaml:"component"`
}

// Config is the group configuration of a release
type Config struct {
	// CandidateTag is the default build tag of images
	CandidateTag    string           `yaml:"candidate_tag"`
	PublicUpstreams []PublicUpstream `yaml:"public_upstreams"`
	Registry        string           `yaml:"registry"`
	Organization    string           `yaml:"organization"`
	Repository      string           `yaml:"repository"`
	Images          []Image          `yaml:"images"`
}

// Load reads the group configuration from a YAML file
//
// If path is empty, the default file is tried; a missing default file yields defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return defaults(), nil
		}
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Registry:     "quay.io",
		Organization: "openshift-release-dev",
		Repository:   "ocp-v4.0-art-dev",
	}
}

func (c *Config) validate() error {
	for i, img := range c.Images {
		if img.Name == "" {
			return fmt.Errorf("images[%d]: name is required", i)
		}
		if img.Tag == "" && c.CandidateTag == "" {
			return fmt.Errorf("image %s: no tag and no candidate_tag", img.Name)
		}
	}
	return nil
}

// PublicUpstreamsEnabled reports whether embargo awareness is on for the group
func (c *Config) PublicUpstreamsEnabled() bool {
	return len(c.PublicUpstreams) > 0
}

// ImageDescriptors returns the inventory with group defaults applied, in file order
func (c *Config) ImageDescriptors() []types.ImageDescriptor {
	images := make([]types.ImageDescriptor, 0, len(c.Images))
	for _, img := range c.Images {
		d := types.ImageDescriptor{ShortName: img.Name, BuildTag: img.Tag, ComponentName: img.Component}
		if d.BuildTag == "" {
			d.BuildTag = c.CandidateTag
		}
		if d.ComponentName == "" {
			d.ComponentName = img.Name + "-container"
		}
		images = append(images, d)
	}
	return images
}

// LoadEnv loads variables from the given .env files that exist
//
// Variables already set in the environment win.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if !goutils.FileExists(f) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}
