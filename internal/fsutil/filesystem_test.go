package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_TempFileOperations(t *testing.T) {
	fs := OSFileSystem{}
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "waveform_000001_250000_1.txt")

	if err := fs.WriteFile(testFile, []byte("Point 1"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := fs.ReadFile(testFile)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "Point 1" {
		t.Errorf("expected 'Point 1', got %q", data)
	}

	info, err := fs.Stat(testFile)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 7 {
		t.Errorf("expected size 7, got %d", info.Size())
	}

	if err := fs.Remove(testFile); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if fs.Exists(testFile) {
		t.Error("expected file to not exist after removal")
	}
}

func TestOSFileSystem_CreateAndList(t *testing.T) {
	fs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "out", "ascii")

	if err := fs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := fs.MkdirAll(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	for _, name := range []string{"b.txt", "a.txt"} {
		w, err := fs.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := w.Write([]byte(name)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	names, err := fs.List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if want := []string{"a.txt", "b.txt"}; !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}

	if _, err := fs.List(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error listing a missing directory")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// Returned data must not alias the stored copy.
	data[0] = 'X'
	again, _ := mfs.ReadFile("/test.txt")
	if string(again) != string(testData) {
		t.Errorf("stored data was modified through ReadFile result: %q", again)
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/out/created.txt")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("part one, ")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := w.Write([]byte("part two")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, _ := mfs.ReadFile("/out/created.txt")
	if len(data) != 0 {
		t.Errorf("expected empty file before Close, got %q", data)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, err = mfs.ReadFile("/out/created.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "part one, part two" {
		t.Errorf("unexpected content %q", data)
	}

	if _, err := w.Write([]byte("late")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("expected ErrClosed writing after Close, got %v", err)
	}
	if err := w.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("expected ErrClosed on double Close, got %v", err)
	}
}

func TestMemoryFileSystem_Stat(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/dir/file.txt", []byte("12345"), 0600)
	_ = mfs.MkdirAll("/dir", 0755)

	info, err := mfs.Stat("/dir/file.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "file.txt" || info.Size() != 5 || info.Mode() != 0600 || info.IsDir() {
		t.Errorf("unexpected file info: %s %d %v %v", info.Name(), info.Size(), info.Mode(), info.IsDir())
	}
	if !info.ModTime().IsZero() || info.Sys() != nil {
		t.Error("expected zero ModTime and nil Sys")
	}

	dirInfo, err := mfs.Stat("/dir")
	if err != nil {
		t.Fatalf("Stat dir failed: %v", err)
	}
	if !dirInfo.IsDir() {
		t.Error("expected directory")
	}

	if _, err := mfs.Stat("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_MkdirAll(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		if !mfs.Exists(dir) {
			t.Errorf("expected %s to exist", dir)
		}
	}
}

func TestMemoryFileSystem_Remove(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/remove.txt", []byte("data"), 0644)
	_ = mfs.MkdirAll("/emptydir", 0755)

	if err := mfs.Remove("/remove.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := mfs.Remove("/emptydir"); err != nil {
		t.Fatalf("Remove dir failed: %v", err)
	}
	if mfs.Exists("/remove.txt") || mfs.Exists("/emptydir") {
		t.Error("expected entries to be removed")
	}

	if err := mfs.Remove("/nonexistent.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_List(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/out/nested", 0755)
	_ = mfs.WriteFile("/out/z.txt", nil, 0644)
	_ = mfs.WriteFile("/out/a.txt", nil, 0644)
	_ = mfs.WriteFile("/out/nested/deep.txt", nil, 0644)

	names, err := mfs.List("/out")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if want := []string{"a.txt", "z.txt"}; !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}

	if _, err := mfs.List("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}

	if want := []string{"/out/a.txt", "/out/nested/deep.txt", "/out/z.txt"}; !reflect.DeepEqual(mfs.Paths(), want) {
		t.Errorf("expected paths %v, got %v", want, mfs.Paths())
	}
}

func TestMemoryFileSystem_PathCleaning(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/a/../b/./file.txt", []byte("data"), 0644)

	if !mfs.Exists("/b/file.txt") {
		t.Error("expected cleaned path to exist")
	}
}

func TestFileSystemInterface(t *testing.T) {
	var _ FileSystem = OSFileSystem{}
	var _ FileSystem = NewMemoryFileSystem()
}
