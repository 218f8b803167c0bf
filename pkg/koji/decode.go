package koji

import (
	"fmt"

	"github.com/117503445/genpayload/pkg/types"
)

const dockerManifestV2 = "application/vnd.docker.distribution.manifest.v2+json"

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case int32:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func toMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func toList(v interface{}) ([]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	l, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	return l, nil
}

func decodeBuild(v interface{}) *types.Build {
	m := toMap(v)
	if m == nil {
		return nil
	}
	return &types.Build{
		ID:      toInt(m["id"]),
		Version: toString(m["version"]),
		Release: toString(m["release"]),
	}
}

// decodeArchive reads the docker-specific fields of an image archive
func decodeArchive(v interface{}) types.Archive {
	m := toMap(v)
	a := types.Archive{
		ID:      toInt(m["id"]),
		BuildID: toInt(m["build_id"]),
		Arch:    toString(m["arch"]),
	}
	docker := toMap(toMap(m["extra"])["docker"])
	if repos, err := toList(docker["repositories"]); err == nil {
		for _, r := range repos {
			a.Pullspecs = append(a.Pullspecs, toString(r))
		}
	}
	a.ManifestDigest = toString(toMap(docker["digests"])[dockerManifestV2])
	return a
}

func decodeTagNames(v interface{}) ([]string, error) {
	list, err := toList(v)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, t := range list {
		names = append(names, toString(toMap(t)["name"]))
	}
	return names, nil
}

func decodeRpms(v interface{}) ([]types.RpmRecord, error) {
	list, err := toList(v)
	if err != nil {
		return nil, err
	}
	rpms := make([]types.RpmRecord, 0, len(list))
	for _, r := range list {
		m := toMap(r)
		rpms = append(rpms, types.RpmRecord{
			BuildID: toInt(m["build_id"]),
			Release: toString(m["release"]),
		})
	}
	return rpms, nil
}
