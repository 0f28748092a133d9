package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const SCENES_DIR = "scenes"

// Extensions tried, in order, when resolving a scene by name.
var SceneExtensions = []string{".toml", ".yaml", ".yml"}

var ErrSceneFile = errors.New("scene description error")

// SceneFileError reports a scene description that is missing or malformed.
// It matches both ErrSceneFile and the underlying cause with errors.Is.
type SceneFileError struct {
	Path string
	Err  error
}

func (e *SceneFileError) Error() string {
	return fmt.Sprintf("could not read scene description %s: %v", e.Path, e.Err)
}

func (e *SceneFileError) Unwrap() []error {
	return []error{ErrSceneFile, e.Err}
}

// SceneDesc is the declarative content of a scene file.
type SceneDesc struct {
	Instances []SceneInstanceDesc `toml:"instances" yaml:"instances"`
}

type SceneInstanceDesc struct {
	Position [3]float32 `toml:"position" yaml:"position"`
	Mesh     string     `toml:"mesh" yaml:"mesh"`
}

func (d SceneInstanceDesc) Vec3() mgl32.Vec3 {
	return mgl32.Vec3(d.Position)
}

// ResolvePath finds the scene file for name under assetsDir/scenes.
func ResolvePath(assetsDir, name string) (string, error) {
	base := filepath.Join(assetsDir, SCENES_DIR, name)
	for _, ext := range SceneExtensions {
		p := base + ext
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", &SceneFileError{Path: base + SceneExtensions[0], Err: os.ErrNotExist}
}

// Load resolves and parses the named scene.
func Load(assetsDir, name string) (*SceneDesc, error) {
	path, err := ResolvePath(assetsDir, name)
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile parses a scene description, picking the format from the extension.
func LoadFile(path string) (*SceneDesc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SceneFileError{Path: path, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &SceneFileError{Path: path, Err: err}
	}
	desc, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, &SceneFileError{Path: path, Err: err}
	}
	return desc, nil
}

// Decode parses data in the format named by ext (".toml", ".yaml" or ".yml").
func Decode(data []byte, ext string) (*SceneDesc, error) {
	desc := &SceneDesc{}
	switch strings.ToLower(ext) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(desc); err != nil {
			return nil, fmt.Errorf("toml: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(desc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scene format %q", ext)
	}
	if err := desc.validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

func (d *SceneDesc) validate() error {
	for i, inst := range d.Instances {
		if strings.TrimSpace(inst.Mesh) == "" {
			return fmt.Errorf("instance %d has no mesh name", i)
		}
	}
	return nil
}
