package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lunagic/hermes/hermestools"
)

func NewDriverLocal(directory string) (*DriverLocal, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, err
	}

	return &DriverLocal{
		Directory: directory,
	}, nil
}

// DriverLocal keeps files below Directory on the local filesystem.
type DriverLocal struct {
	Directory string
}

func (driver *DriverLocal) absolutePath(filePath string) string {
	return filepath.Join(driver.Directory, filepath.FromSlash(filePath))
}

func (driver *DriverLocal) Get(ctx context.Context, filePath string) (io.ReadCloser, error) {
	return os.Open(driver.absolutePath(filePath))
}

func (driver *DriverLocal) Put(ctx context.Context, filePath string, payload io.Reader) error {
	target := driver.absolutePath(filePath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	file, err := os.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, payload); err != nil {
		_ = file.Close()
		return err
	}

	return file.Close()
}

func (driver *DriverLocal) Delete(ctx context.Context, filePath string) error {
	if err := os.Remove(driver.absolutePath(filePath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

func (driver *DriverLocal) Exists(ctx context.Context, filePath string) (bool, error) {
	if _, err := os.Stat(driver.absolutePath(filePath)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (driver *DriverLocal) List(ctx context.Context, prefix string) ([]string, error) {
	paths := []string{}
	err := filepath.WalkDir(driver.Directory, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(driver.Directory, path)
		if err != nil {
			return err
		}

		paths = append(paths, filepath.ToSlash(relative))

		return nil
	})
	if err != nil {
		return nil, err
	}

	paths = hermestools.Filter(paths, func(path string) bool {
		return strings.HasPrefix(path, prefix)
	})

	sort.Strings(paths)

	return paths, nil
}

func (driver *DriverLocal) IsReady(ctx context.Context) error {
	_, err := os.Stat(driver.Directory)

	return err
}
