package assets

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/vktogo/engine/core"
)

type AssetType uint8

const (
	AssetTypeNone AssetType = iota
	AssetTypeShaderBinary
	AssetTypeShaderSource
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeShaderBinary:
		return "shader_binary"
	case AssetTypeShaderSource:
		return "shader_source"
	default:
		return "none"
	}
}

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

// Event reports a created, modified or removed asset file.
type Event struct {
	Path    string
	Type    AssetType
	Removed bool
}

// AssetManager indexes the shader files below a directory and reports
// changes to them while the application runs.
type AssetManager struct {
	assets map[string]AssetInfo
	mutex  sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once
	fsnotify  *fsnotify.Watcher
	isClosed  bool
	started   bool
	events    chan Event
	errors    chan error
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}
	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		fsnotify: fsWatch,
		events:   make(chan Event, 64),
		errors:   make(chan error, 8),
		done:     make(chan struct{}),
	}, nil
}

// Initialize indexes assetsDir and starts watching it and every directory
// below it.
func (am *AssetManager) Initialize(assetsDir string) error {
	if err := am.addRecursive(assetsDir); err != nil {
		return err
	}
	am.mutex.Lock()
	am.started = true
	am.mutex.Unlock()
	go am.start()
	core.LogDebug("watching assets in %s", assetsDir)
	return nil
}

// Events delivers asset changes. Changes are dropped while the channel is full.
func (am *AssetManager) Events() <-chan Event {
	return am.events
}

func (am *AssetManager) Errors() <-chan error {
	return am.errors
}

func (am *AssetManager) Close() (err error) {
	am.closeOnce.Do(func() {
		am.mutex.Lock()
		am.isClosed = true
		started := am.started
		am.mutex.Unlock()
		close(am.done)
		if !started {
			err = am.fsnotify.Close()
		}
	})
	return err
}

// Assets returns the indexed assets of type t sorted by path.
func (am *AssetManager) Assets(t AssetType) []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	out := make([]AssetInfo, 0, len(am.assets))
	for _, a := range am.assets {
		if a.Type == t {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (am *AssetManager) Lookup(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	a, ok := am.assets[filepath.Clean(path)]
	return a, ok
}

// Load reads an indexed asset from disk. Shader binaries must hold whole
// 32 bit words.
func (am *AssetManager) Load(path string) ([]byte, error) {
	path = filepath.Clean(path)
	am.mutex.RLock()
	asset, exists := am.assets[path]
	am.mutex.RUnlock()
	if !exists {
		return nil, errors.Newf("asset not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading asset %s", path)
	}
	if asset.Type == AssetTypeShaderBinary && (len(data) == 0 || len(data)%4 != 0) {
		return nil, errors.Newf("shader binary %s has invalid size %d", path, len(data))
	}

	am.mutex.Lock()
	asset.LastLoaded = time.Now()
	am.assets[path] = asset
	am.mutex.Unlock()
	return data, nil
}

func (am *AssetManager) addRecursive(name string) error {
	am.mutex.RLock()
	closed := am.isClosed
	am.mutex.RUnlock()
	if closed {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name)
}

func (am *AssetManager) start() {
	defer am.fsnotify.Close()
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
			core.LogError(err.Error())
			select {
			case am.errors <- err:
			default:
			}

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	name := filepath.Clean(e.Name)
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(name); err == nil && s.IsDir() {
			if err := am.watchRecursive(name); err != nil {
				core.LogWarn("unable to watch %s: %s", name, err)
			}
			return
		}
	}

	var ev Event
	switch {
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if !am.indexFile(name) {
			return
		}
		ev = Event{Path: name, Type: determineAssetType(name)}
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		t, ok := am.removeAsset(name)
		if !ok {
			return
		}
		ev = Event{Path: name, Type: t, Removed: true}
	default:
		return
	}

	select {
	case am.events <- ev:
	default:
		core.LogWarn("asset event queue full, dropping change to %s", name)
	}
}

// watchRecursive adds name and every directory below it to the watch list
// and indexes the files it finds.
func (am *AssetManager) watchRecursive(name string) error {
	return filepath.Walk(name, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.indexFile(filepath.Clean(walkPath))
		return nil
	})
}

func (am *AssetManager) indexFile(path string) bool {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return false
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if _, ok := am.assets[path]; !ok {
		am.assets[path] = AssetInfo{Path: path, Type: assetType}
	}
	return true
}

func (am *AssetManager) removeAsset(path string) (AssetType, bool) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	a, ok := am.assets[path]
	delete(am.assets, path)
	return a.Type, ok
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".spv":
		return AssetTypeShaderBinary
	case ".vert", ".frag", ".comp", ".geom", ".tesc", ".tese":
		return AssetTypeShaderSource
	default:
		return AssetTypeNone
	}
}
