package downloads

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"toolshed/internal/config"
	"toolshed/internal/fsutil"
	"toolshed/internal/models"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// ListFiles lists the files of one category folder, or of every configured
// category plus "other" when category is empty or "all".
func ListFiles(sortedPath string, categories config.Categories, category string) ([]models.SortedFile, error) {
	files := []models.SortedFile{}

	var names []string
	if category != "" && category != "all" {
		if err := validName(category); err != nil {
			return nil, err
		}
		names = []string{category}
	} else {
		names = categories.Names()
		if !slices.Contains(names, OtherCategory) {
			names = append(names, OtherCategory)
		}
	}

	for _, name := range names {
		dir := filepath.Join(sortedPath, name)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dir, err)
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, models.SortedFile{
				Name:     entry.Name(),
				Path:     filepath.Join(dir, entry.Name()),
				Category: name,
				Size:     info.Size(),
				Modified: info.ModTime(),
				Created:  fsutil.CreatedTime(info),
			})
		}
	}

	return files, nil
}

// DeleteFile removes sortedPath/category/filename.
func DeleteFile(sortedPath, category, filename string) error {
	if err := validName(category); err != nil {
		return err
	}
	if err := validName(filename); err != nil {
		return err
	}

	path := filepath.Join(sortedPath, category, filename)
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidName, filename)
	}

	return os.Remove(path)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
