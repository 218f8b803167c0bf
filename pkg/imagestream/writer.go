package imagestream

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MirrorFileName returns the SRC=DEST file name of a key, e.g. "src_dest.ppc64le-priv"
func MirrorFileName(key string) string {
	return "src_dest." + key
}

// StreamFileName returns the ImageStream file name of a key, e.g. "image_stream.x86_64.yaml"
func StreamFileName(key string) string {
	return "image_stream." + key + ".yaml"
}

// MarshalStream renders the ImageStream as YAML with a two space indent
func (o *Output) MarshalStream() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(o.Stream); err != nil {
		return nil, fmt.Errorf("failed to encode imagestream %s: %w", o.Key, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalMirrors renders the mirror list, one SRC=DEST line per tag
func (o *Output) MarshalMirrors() []byte {
	var buf bytes.Buffer
	for _, l := range o.Mirrors {
		buf.WriteString(l.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// WriteFiles writes the mirror list and ImageStream of the output into dir
func (o *Output) WriteFiles(dir string) error {
	stream, err := o.MarshalStream()
	if err != nil {
		return err
	}
	key := o.Key.String()
	if err := os.WriteFile(filepath.Join(dir, MirrorFileName(key)), o.MarshalMirrors(), 0o644); err != nil {
		return fmt.Errorf("failed to write mirror list for %s: %w", key, err)
	}
	if err := os.WriteFile(filepath.Join(dir, StreamFileName(key)), stream, 0o644); err != nil {
		return fmt.Errorf("failed to write imagestream for %s: %w", key, err)
	}
	return nil
}
