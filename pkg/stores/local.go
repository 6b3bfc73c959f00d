package stores

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// LocalStore is a Store over a billy filesystem. Paths are absolute paths
// inside that filesystem.
type LocalStore struct {
	fs billy.Filesystem
}

// NewLocalStore creates a LocalStore over fsys.
func NewLocalStore(fsys billy.Filesystem) *LocalStore {
	return &LocalStore{fs: fsys}
}

// NewOSStore creates a LocalStore over the host filesystem.
func NewOSStore() *LocalStore {
	return NewLocalStore(osfs.New("/"))
}

// Download copies the file or directory at src to dst.
func (s *LocalStore) Download(ctx context.Context, src, dst string) (string, error) {
	from, err := localPath(src)
	if err != nil {
		return "", err
	}
	to, err := filepath.Abs(dst)
	if err != nil {
		return "", fmt.Errorf("invalid destination %q: %w", dst, err)
	}
	if err := s.copyTree(ctx, from, to); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", src, err)
	}
	return to, nil
}

// Upload copies the file or directory at src to dst and returns dst as a
// file URI.
func (s *LocalStore) Upload(ctx context.Context, src, dst string) (string, error) {
	from, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("invalid source %q: %w", src, err)
	}
	to, err := localPath(dst)
	if err != nil {
		return "", err
	}
	if err := s.copyTree(ctx, from, to); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", src, err)
	}
	return SchemeFile + "://" + filepath.ToSlash(to), nil
}

// GetFileInfo returns one entry per regular file under path, sorted by path.
func (s *LocalStore) GetFileInfo(ctx context.Context, path string) ([]FileInfo, error) {
	root, err := localPath(path)
	if err != nil {
		return nil, err
	}

	var infos []FileInfo
	err = util.Walk(s.fs, root, func(p string, st os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if st.IsDir() {
			return nil
		}
		info, err := s.fileInfo(p, st)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return infos, nil
}

func (s *LocalStore) fileInfo(path string, st os.FileInfo) (FileInfo, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return FileInfo{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Path:         path,
		Name:         filepath.Base(path),
		Size:         st.Size(),
		Hash:         "sha256:" + hex.EncodeToString(h.Sum(nil)),
		ContentType:  mime.TypeByExtension(filepath.Ext(path)),
		LastModified: st.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

// localPath converts a file URI or plain path to an absolute path.
func localPath(uri string) (string, error) {
	scheme, err := Scheme(uri)
	if err != nil {
		return "", err
	}
	if scheme != SchemeFile {
		return "", fmt.Errorf("local store cannot serve %s uri %q", scheme, uri)
	}
	p := strings.TrimPrefix(uri, SchemeFile+"://")
	abs, err := filepath.Abs(filepath.FromSlash(p))
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", uri, err)
	}
	return abs, nil
}

func (s *LocalStore) copyTree(ctx context.Context, src, dst string) error {
	st, err := s.fs.Stat(src)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return s.copyFile(src, dst, st.Mode())
	}
	return util.Walk(s.fs, src, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return s.fs.MkdirAll(target, 0o755)
		}
		return s.copyFile(p, target, info.Mode())
	})
}

func (s *LocalStore) copyFile(src, dst string, mode os.FileMode) error {
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := s.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
