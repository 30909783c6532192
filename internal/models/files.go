package models

import "time"

// FileFingerprint is the content identity of one file.
type FileFingerprint struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// DuplicateGroup lists files sharing a content hash. Files holds at least two
// paths in discovery order and Size is the size of the first one.
type DuplicateGroup struct {
	Hash  string   `json:"hash"`
	Files []string `json:"files"`
	Size  int64    `json:"size"`
	Count int      `json:"count"`
}

type HistoryEntry struct {
	Filename     string  `json:"filename"`
	OriginalPath string  `json:"originalPath"`
	SortedPath   string  `json:"sortedPath"`
	Category     string  `json:"category"`
	Size         int64   `json:"size"`
	Hash         *string `json:"hash"`
	Timestamp    string  `json:"timestamp"`
}

type SortStats struct {
	TotalSorted int            `json:"totalSorted"`
	ByCategory  map[string]int `json:"byCategory"`
}

type SortedFile struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Category string    `json:"category"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Created  time.Time `json:"created"`
}
