// Package fileio reads configuration files and replaces them atomically.
package fileio

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/openfroyo/confpatch/pkg/blockpatch"
)

// DefaultMaxBytes bounds how much of a file Read loads into memory.
const DefaultMaxBytes = 10 * 1024 * 1024

// File is a configuration file loaded into memory.
type File struct {
	Path string

	// Target is Path with symlinks resolved. Replace writes here so that a
	// symlinked file is patched through the link instead of replacing it.
	Target string

	Content  []byte
	Mode     fs.FileMode
	UID, GID int
	Checksum string
}

// Read loads the whole file at path. A missing or unreadable file is reported
// as a blockpatch.KindNotFound error; a file over DefaultMaxBytes as
// blockpatch.KindIO.
func Read(path string) (*File, error) {
	if path == "" {
		return nil, blockpatch.NewNotFoundError("path is required", nil)
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, blockpatch.NewNotFoundError("failed to resolve path", err).WithPath(path)
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, blockpatch.NewNotFoundError("failed to open file", err).WithPath(path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, blockpatch.NewNotFoundError("failed to stat file", err).WithPath(path)
	}
	if !info.Mode().IsRegular() {
		return nil, blockpatch.NewNotFoundError("not a regular file", nil).WithPath(path)
	}
	if info.Size() > DefaultMaxBytes {
		return nil, blockpatch.NewIOError(
			fmt.Sprintf("file too large: %d bytes exceeds the %d byte limit", info.Size(), DefaultMaxBytes), nil).WithPath(path)
	}

	content, err := io.ReadAll(io.LimitReader(f, DefaultMaxBytes+1))
	if err != nil {
		return nil, blockpatch.NewNotFoundError("failed to read file", err).WithPath(path)
	}

	file := &File{
		Path:     path,
		Target:   target,
		Content:  content,
		Mode:     info.Mode().Perm(),
		UID:      -1,
		GID:      -1,
		Checksum: Checksum(content),
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		file.UID = int(stat.Uid)
		file.GID = int(stat.Gid)
	}
	return file, nil
}

// WriteAtomic replaces path with content. The data goes to a temporary file in
// the same directory, is synced, and is renamed over path, so a failure at
// any point leaves the original untouched.
func WriteAtomic(path string, content []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return blockpatch.NewIOError("failed to create temporary file", err).WithPath(path)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return blockpatch.NewIOError("failed to write temporary file", err).WithPath(path)
	}
	if err := tmp.Sync(); err != nil {
		return blockpatch.NewIOError("failed to sync temporary file", err).WithPath(path)
	}
	if err := tmp.Chmod(mode); err != nil {
		return blockpatch.NewIOError("failed to set mode", err).WithPath(path)
	}
	if err := tmp.Close(); err != nil {
		return blockpatch.NewIOError("failed to close temporary file", err).WithPath(path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return blockpatch.NewIOError("failed to replace file", err).WithPath(path)
	}
	committed = true

	syncDir(dir)
	return nil
}

// Replace writes f.Content back to the file atomically, preserving mode and,
// when permitted, ownership. A symlinked Path keeps its link; the file it
// points to is replaced.
func Replace(f *File) error {
	dst := f.WritePath()
	if err := WriteAtomic(dst, f.Content, f.Mode); err != nil {
		return err
	}
	if f.UID >= 0 && f.GID >= 0 {
		// Only root can hand a file to another user; anyone else already owns it.
		if err := os.Lchown(dst, f.UID, f.GID); err != nil && !errors.Is(err, fs.ErrPermission) {
			return blockpatch.NewIOError("failed to restore ownership", err).WithPath(f.Path)
		}
	}
	return nil
}

// WritePath returns the path that Replace and backups operate on.
func (f *File) WritePath() string {
	if f.Target != "" {
		return f.Target
	}
	return f.Path
}

// Backup copies path to path+".bak" and returns the backup path.
func Backup(path string) (string, error) {
	backupPath := path + ".bak"
	if err := copyFile(path, backupPath); err != nil {
		return "", blockpatch.NewIOError("failed to create backup", err).WithPath(path)
	}
	return backupPath, nil
}

// Checksum returns the hex sha256 of content.
func Checksum(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, sourceInfo.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		_ = destFile.Close()
		return err
	}
	if err := destFile.Sync(); err != nil {
		_ = destFile.Close()
		return err
	}
	if err := destFile.Close(); err != nil {
		return err
	}

	return os.Chmod(dst, sourceInfo.Mode().Perm())
}

// syncDir flushes the directory entry after a rename. Errors are ignored;
// some filesystems do not support fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
