package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDetermineAssetType(t *testing.T) {
	tests := []struct {
		path string
		want AssetType
	}{
		{"shaders/triangle.vert.spv", AssetTypeShaderBinary},
		{"shaders/triangle.vert", AssetTypeShaderSource},
		{"shaders/blur.comp", AssetTypeShaderSource},
		{"textures/wall.png", AssetTypeNone},
		{"README", AssetTypeNone},
	}
	for _, tt := range tests {
		if got := determineAssetType(tt.path); got != tt.want {
			t.Errorf("determineAssetType(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInitializeIndexesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "ui")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "a.vert.spv"), make([]byte, 8))
	writeFile(t, filepath.Join(sub, "b.frag"), []byte("void main() {}"))
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("x"))

	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	defer am.Close()
	if err := am.Initialize(dir); err != nil {
		t.Fatal(err)
	}

	bins := am.Assets(AssetTypeShaderBinary)
	if len(bins) != 1 || bins[0].Path != filepath.Join(dir, "a.vert.spv") {
		t.Errorf("binaries = %+v", bins)
	}
	if _, ok := am.Lookup(filepath.Join(sub, "b.frag")); !ok {
		t.Error("source in sub directory not indexed")
	}
	if _, ok := am.Lookup(filepath.Join(dir, "notes.txt")); ok {
		t.Error("unrelated file indexed")
	}
}

func TestLoadValidatesShaderBinaries(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.spv")
	bad := filepath.Join(dir, "bad.spv")
	writeFile(t, good, make([]byte, 12))
	writeFile(t, bad, make([]byte, 7))

	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	defer am.Close()
	if err := am.Initialize(dir); err != nil {
		t.Fatal(err)
	}

	data, err := am.Load(good)
	if err != nil {
		t.Fatalf("Load(good) = %v", err)
	}
	if len(data) != 12 {
		t.Errorf("len = %d, want 12", len(data))
	}
	if info, _ := am.Lookup(good); info.LastLoaded.IsZero() {
		t.Error("LastLoaded not updated")
	}
	if _, err := am.Load(bad); err == nil {
		t.Error("Load accepted a shader binary with a partial word")
	}
	if _, err := am.Load(filepath.Join(dir, "missing.spv")); err == nil {
		t.Error("Load accepted an unknown asset")
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	defer am.Close()
	if err := am.Initialize(dir); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "tri.frag.spv")
	writeFile(t, path, make([]byte, 4))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-am.Events():
			if ev.Path != path {
				continue
			}
			if ev.Type != AssetTypeShaderBinary || ev.Removed {
				t.Fatalf("event = %+v", ev)
			}
			if _, ok := am.Lookup(path); !ok {
				t.Error("changed file not indexed")
			}
			return
		case <-deadline:
			t.Fatal("no event for new shader binary")
		}
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	defer am.Close()
	if err := am.Initialize(dir); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(dir, "scratch.tmp"), []byte("x"))
	select {
	case ev := <-am.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCloseWithoutInitialize(t *testing.T) {
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
	if err := am.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := am.Initialize(t.TempDir()); err == nil {
		t.Error("Initialize after Close succeeded")
	}
}
