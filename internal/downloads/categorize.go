// Package downloads sorts files arriving in a watched folder into category
// folders and keeps a history of the moves.
package downloads

import (
	"path/filepath"
	"slices"
	"strings"
	"toolshed/internal/config"
)

const OtherCategory = "other"

// Categorize returns the first category listing the file's extension, or
// OtherCategory.
func Categorize(filename string, categories config.Categories) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, cat := range categories {
		if slices.Contains(cat.Extensions, ext) {
			return cat.Name
		}
	}
	return OtherCategory
}

func ShouldIgnore(filename string, ignored []string) bool {
	return slices.Contains(ignored, strings.ToLower(filepath.Ext(filename)))
}
