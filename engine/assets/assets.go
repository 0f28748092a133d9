package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
	"github.com/spaghettifunk/kiln/engine/scene"
)

var ErrAssetManagerClosed = errors.New("asset manager already closed")

type AssetType uint8

const (
	AssetTypeNone AssetType = iota
	AssetTypeMesh
	AssetTypeScene
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeMesh:
		return "mesh"
	case AssetTypeScene:
		return "scene"
	default:
		return "none"
	}
}

type AssetInfo struct {
	// Asset path as the renderer sees it, e.g. "/baked/car.mesh".
	Path string
	// Location on disk.
	File         string
	Type         AssetType
	LastModified time.Time
}

// AssetManager indexes the baked meshes and scene descriptions under an
// assets directory and keeps the index current while files change on disk.
// Every change is posted to the event system so the frame loop can react to
// it on its own goroutine.
type AssetManager struct {
	root   string
	events *core.EventSystem

	mutex  sync.RWMutex
	assets map[string]AssetInfo

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	isClosed bool
}

// NewAssetManager creates a manager that posts change events to events. A nil
// event system disables notifications; the index is still maintained.
func NewAssetManager(events *core.EventSystem) (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &AssetManager{
		events:   events,
		assets:   make(map[string]AssetInfo),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}, nil
}

// Initialize indexes everything under assetsDir and starts watching it.
func (am *AssetManager) Initialize(assetsDir string) error {
	if am.isClosed {
		return ErrAssetManagerClosed
	}
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	fi, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("assets directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("assets directory %s is not a directory", root)
	}
	am.root = root

	if err := am.watchRecursive(root, false); err != nil {
		return err
	}

	am.wg.Add(1)
	go am.start()

	core.LogInfo("asset manager watching %s (%d assets indexed)", root, am.Len())
	return nil
}

// HasAsset reports whether an indexed asset lives at path, e.g. "/baked/car.mesh".
func (am *AssetManager) HasAsset(path string) bool {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	_, ok := am.assets[path]
	return ok
}

func (am *AssetManager) Lookup(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[path]
	return info, ok
}

// Assets lists the indexed assets of one type sorted by path.
func (am *AssetManager) Assets(assetType AssetType) []AssetInfo {
	am.mutex.RLock()
	out := make([]AssetInfo, 0, len(am.assets))
	for _, info := range am.assets {
		if info.Type == assetType {
			out = append(out, info)
		}
	}
	am.mutex.RUnlock()
	slices.SortFunc(out, func(a, b AssetInfo) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

func (am *AssetManager) Len() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) Root() string {
	return am.root
}

// Shutdown stops the watcher and waits for the event loop to exit.
func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	am.wg.Wait()
	return am.fsnotify.Close()
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name, false); err != nil {
				core.LogError("asset watcher: %s", err)
			}
			return
		}
	}
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		if info, ok := am.index(e.Name); ok {
			am.post(info)
		}
	}
	// A removed directory can't be stat'ed, so try to drop its watch regardless.
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if info, ok := am.removeAsset(e.Name); ok {
			am.postRemoved(info)
		}
		_ = am.fsnotify.Remove(e.Name)
	}
}

// watchRecursive adds or removes watches for path and every directory below
// it. Files found on the way are indexed.
func (am *AssetManager) watchRecursive(root string, unWatch bool) error {
	return filepath.WalkDir(root, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		if !unWatch {
			am.index(walkPath)
		}
		return nil
	})
}

// index records the file at name if it is an asset the engine understands.
func (am *AssetManager) index(name string) (AssetInfo, bool) {
	assetPath, ok := am.assetPath(name)
	if !ok {
		return AssetInfo{}, false
	}
	assetType := determineAssetType(assetPath)
	if assetType == AssetTypeNone {
		return AssetInfo{}, false
	}
	info := AssetInfo{
		Path: assetPath,
		File: name,
		Type: assetType,
	}
	if s, err := os.Stat(name); err == nil {
		info.LastModified = s.ModTime()
	}

	am.mutex.Lock()
	am.assets[assetPath] = info
	am.mutex.Unlock()
	return info, true
}

func (am *AssetManager) removeAsset(name string) (AssetInfo, bool) {
	assetPath, ok := am.assetPath(name)
	if !ok {
		return AssetInfo{}, false
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	info, ok := am.assets[assetPath]
	if ok {
		delete(am.assets, assetPath)
	}
	return info, ok
}

// assetPath turns a file name on disk into a rooted, slash separated asset path.
func (am *AssetManager) assetPath(name string) (string, bool) {
	rel, err := filepath.Rel(am.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return "/" + filepath.ToSlash(rel), true
}

func (am *AssetManager) post(info AssetInfo) {
	if am.events == nil {
		return
	}
	var code core.SystemEventCode
	switch info.Type {
	case AssetTypeMesh:
		code = core.EVENT_CODE_MESH_BAKED
	case AssetTypeScene:
		code = core.EVENT_CODE_SCENE_CHANGED
	default:
		return
	}
	core.LogDebug("asset %s changed (%s)", info.Path, info.Type)
	_ = am.events.Post(core.EventContext{Type: code, Data: &core.AssetEvent{Path: info.Path}})
}

func (am *AssetManager) postRemoved(info AssetInfo) {
	if am.events == nil {
		return
	}
	core.LogDebug("asset %s removed", info.Path)
	_ = am.events.Post(core.EventContext{
		Type: core.EVENT_CODE_ASSET_REMOVED,
		Data: &core.AssetEvent{Path: info.Path},
	})
}

func determineAssetType(assetPath string) AssetType {
	dir, ext := path.Dir(assetPath), path.Ext(assetPath)
	switch {
	case dir == components.BAKED_MESH_DIR && ext == ".mesh":
		return AssetTypeMesh
	case dir == "/"+scene.SCENES_DIR && slices.Contains(scene.SceneExtensions, ext):
		return AssetTypeScene
	default:
		return AssetTypeNone
	}
}

// SceneName strips the directory and extension from a scene asset path.
func SceneName(assetPath string) string {
	return strings.TrimSuffix(path.Base(assetPath), path.Ext(assetPath))
}
