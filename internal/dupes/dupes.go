// Package dupes finds files with identical content by SHA-256 digest.
package dupes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"toolshed/internal/models"
)

// HashFile streams the file at path through SHA-256. The file is closed on
// every return path.
func HashFile(path string) (models.FileFingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.FileFingerprint{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return models.FileFingerprint{}, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return models.FileFingerprint{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return models.FileFingerprint{
		Path: abs,
		Hash: hex.EncodeToString(h.Sum(nil)),
		Size: info.Size(),
	}, nil
}

// FindDuplicates walks root and groups regular files by content digest.
// Groups come out in the order their digest was first seen; digests seen
// once are dropped. Files or subdirectories that cannot be read are logged
// and skipped. Only an unreadable root is an error.
func FindDuplicates(ctx context.Context, root string, logger *slog.Logger) ([]models.DuplicateGroup, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}

	idx := &index{positions: make(map[string]int)}
	if err := idx.scan(ctx, root, entries, logger); err != nil {
		return nil, err
	}

	return idx.groups(), nil
}

type index struct {
	positions map[string]int
	order     []*bucket
}

type bucket struct {
	hash  string
	size  int64
	files []string
}

func (idx *index) add(fp models.FileFingerprint) {
	if pos, ok := idx.positions[fp.Hash]; ok {
		idx.order[pos].files = append(idx.order[pos].files, fp.Path)
		return
	}
	idx.positions[fp.Hash] = len(idx.order)
	idx.order = append(idx.order, &bucket{hash: fp.Hash, size: fp.Size, files: []string{fp.Path}})
}

func (idx *index) scan(ctx context.Context, dir string, entries []os.DirEntry, logger *slog.Logger) error {
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, entry.Name())

		switch {
		case entry.IsDir():
			children, err := os.ReadDir(path)
			if err != nil {
				logger.Warn("skipping unreadable directory", "path", path, "error", err)
				continue
			}
			if err := idx.scan(ctx, path, children, logger); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			fp, err := HashFile(path)
			if err != nil {
				logger.Warn("error hashing file", "path", path, "error", err)
				continue
			}
			idx.add(fp)
		}
	}
	return nil
}

func (idx *index) groups() []models.DuplicateGroup {
	groups := []models.DuplicateGroup{}
	for _, b := range idx.order {
		if len(b.files) < 2 {
			continue
		}
		groups = append(groups, models.DuplicateGroup{
			Hash:  b.hash,
			Files: b.files,
			Size:  b.size,
			Count: len(b.files),
		})
	}
	return groups
}
