package components

import "fmt"

// EntityID identifies a dynamically spawned entity.
type EntityID uint64

// Origin tells which registry an instance belongs to.
type Origin uint8

const (
	// Declared in a scene description file, keyed by its index in that file.
	OriginScene Origin = iota + 1
	// Spawned at runtime, keyed by entity id.
	OriginEntity
)

func (o Origin) String() string {
	switch o {
	case OriginScene:
		return "scene"
	case OriginEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// InstanceKey is the provenance-tagged identity of a mesh instance. Two keys
// are equal only if both origin and id match, so SceneKey(0) and EntityKey(0)
// never alias.
type InstanceKey struct {
	Origin Origin
	ID     uint64
}

func SceneKey(index uint32) InstanceKey {
	return InstanceKey{Origin: OriginScene, ID: uint64(index)}
}

func EntityKey(id EntityID) InstanceKey {
	return InstanceKey{Origin: OriginEntity, ID: uint64(id)}
}

// SceneIndex returns the scene file index; ok is false for entity keys.
func (k InstanceKey) SceneIndex() (uint32, bool) {
	return uint32(k.ID), k.Origin == OriginScene
}

// Entity returns the entity id; ok is false for scene keys.
func (k InstanceKey) Entity() (EntityID, bool) {
	return EntityID(k.ID), k.Origin == OriginEntity
}

func (k InstanceKey) String() string {
	return fmt.Sprintf("%s:%d", k.Origin, k.ID)
}

// MeshInstance is one tracked scene object: which mesh it shows and where.
type MeshInstance struct {
	Key       InstanceKey
	MeshName  string
	Transform Transform
}

const BAKED_MESH_DIR = "/baked"

// MeshPath resolves a logical mesh name to its baked asset path.
func MeshPath(name string) string {
	return fmt.Sprintf("%s/%s.mesh", BAKED_MESH_DIR, name)
}
