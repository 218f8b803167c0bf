package types

const (
	ImageStreamKind       = "ImageStream"
	ImageStreamAPIVersion = "image.openshift.io/v1"
	DockerImageKind       = "DockerImage"
)

// ImageStream is the release ImageStream document applied by `oc apply`
type ImageStream struct {
	APIVersion string              `yaml:"apiVersion"`
	Kind       string              `yaml:"kind"`
	Metadata   ImageStreamMetadata `yaml:"metadata"`
	Spec       ImageStreamSpec     `yaml:"spec"`
}

type ImageStreamMetadata struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
}

type ImageStreamSpec struct {
	Tags []TagReference `yaml:"tags"`
}

// TagReference is one entry of spec.tags
type TagReference struct {
	Name string          `yaml:"name"`
	From ObjectReference `yaml:"from"`
}

type ObjectReference struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
}

// NewImageStream returns an empty ImageStream with kind and apiVersion set
func NewImageStream(name, namespace string) *ImageStream {
	return &ImageStream{
		APIVersion: ImageStreamAPIVersion,
		Kind:       ImageStreamKind,
		Metadata:   ImageStreamMetadata{Name: name, Namespace: namespace},
		Spec:       ImageStreamSpec{Tags: []TagReference{}},
	}
}

// AddTag appends a DockerImage tag reference
func (s *ImageStream) AddTag(name, dest string) {
	s.Spec.Tags = append(s.Spec.Tags, TagReference{
		Name: name,
		From: ObjectReference{Kind: DockerImageKind, Name: dest},
	})
}

// TagNames returns the tag names in order
func (s *ImageStream) TagNames() []string {
	names := make([]string, 0, len(s.Spec.Tags))
	for _, t := range s.Spec.Tags {
		names = append(names, t.Name)
	}
	return names
}
