package stores

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func TestScheme(t *testing.T) {
	tests := map[string]string{
		"/tmp/data.csv":         "file",
		"data.csv":              "file",
		"file:///tmp/data.csv":  "file",
		"s3://bucket/key":       "s3",
		"HTTPS://example.com/x": "https",
	}
	for uri, want := range tests {
		got, err := Scheme(uri)
		if err != nil {
			t.Fatalf("Scheme(%q) failed: %v", uri, err)
		}
		if got != want {
			t.Errorf("Scheme(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()
	if _, ok := reg.Lookup("/tmp/x"); !ok {
		t.Error("plain path not served by the default registry")
	}
	if _, ok := reg.Lookup("s3://bucket/x"); ok {
		t.Error("s3 uri served without an s3 store")
	}
	if got := reg.Schemes(); len(got) != 1 || got[0] != "file" {
		t.Errorf("Schemes() = %v", got)
	}
}

func TestLocalStoreUploadDownload(t *testing.T) {
	ctx := context.Background()
	fsys := memfs.New()
	if err := util.WriteFile(fsys, "/in/data.csv", []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewLocalStore(fsys)
	uri, err := s.Upload(ctx, "/in/data.csv", "file:///store/data.csv")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if uri != "file:///store/data.csv" {
		t.Errorf("Upload returned %q", uri)
	}

	infos, err := s.GetFileInfo(ctx, uri)
	if err != nil {
		t.Fatalf("GetFileInfo failed: %v", err)
	}
	if len(infos) != 1 || infos[0].Size != 8 || !strings.HasPrefix(infos[0].Hash, "sha256:") {
		t.Errorf("GetFileInfo() = %+v", infos)
	}

	out, err := s.Download(ctx, uri, "/out/copy.csv")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	data, err := util.ReadFile(fsys, out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("downloaded content = %q", data)
	}
}

func TestLocalStoreCopiesDirectories(t *testing.T) {
	ctx := context.Background()
	fsys := memfs.New()
	for name, body := range map[string]string{
		"/model/weights.bin":   "0101",
		"/model/conf/cfg.yaml": "lr: 0.1\n",
	} {
		if err := util.WriteFile(fsys, name, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s := NewLocalStore(fsys)
	uri, err := s.Upload(ctx, "/model", "/store/model")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	infos, err := s.GetFileInfo(ctx, uri)
	if err != nil {
		t.Fatalf("GetFileInfo failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("GetFileInfo() returned %d entries, want 2", len(infos))
	}
	if infos[0].Path != "/store/model/conf/cfg.yaml" || infos[1].Path != "/store/model/weights.bin" {
		t.Errorf("paths = %q, %q", infos[0].Path, infos[1].Path)
	}
}

func TestLocalStoreMissingSource(t *testing.T) {
	s := NewLocalStore(memfs.New())
	if _, err := s.Download(context.Background(), "/nope", "/out"); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestOSStoreUpload(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	uri, err := NewOSStore().Upload(context.Background(), src, filepath.Join(dir, "store", "data.txt"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "store", "data.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" || !strings.HasPrefix(uri, "file://") {
		t.Errorf("Upload() = %q, content %q", uri, data)
	}
}

func TestLocalStoreRejectsOtherSchemes(t *testing.T) {
	if _, err := NewLocalStore(memfs.New()).GetFileInfo(context.Background(), "s3://bucket/key"); err == nil {
		t.Error("expected error for s3 uri")
	}
}
