// Package scanner finds statement files in a directory tree for batch imports
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// periodDir matches statement period directories such as 2024-03
var periodDir = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Scanner walks directory tree and finds statement files
type Scanner struct {
	rootDir string
}

// New creates a new scanner for the given root directory
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// ScanResult is a statement file and what its location says about it.
// Layout: {root}/{card}/{YYYY-MM?}/file.ext
type ScanResult struct {
	Path string
	// CardName is the readable name of the first directory, "" for files at the root
	CardName string
	// Period is the YYYY-MM directory the file sits in, when present
	Period string
}

// Scan walks the directory tree and returns statement files sorted by path
func (s *Scanner) Scan() ([]ScanResult, error) {
	rootDir := s.expandHome(s.rootDir)

	var results []ScanResult
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != rootDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isStatementFile(path) {
			return nil
		}
		results = append(results, s.describe(path, rootDir))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

// isStatementFile checks if file is a known statement format
func isStatementFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx", ".csv":
		return true
	}
	return false
}

func (s *Scanner) describe(filePath, rootDir string) ScanResult {
	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		relPath = filePath
	}
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	result := ScanResult{Path: filePath}
	if len(parts) >= 2 {
		result.CardName = cardName(parts[0])
	}
	if len(parts) >= 3 && periodDir.MatchString(parts[len(parts)-2]) {
		result.Period = parts[len(parts)-2]
	}
	return result
}

// cardName converts a directory name to a readable card name
// "nubank_ultravioleta" -> "Nubank Ultravioleta"
func cardName(dirName string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(dirName))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// expandHome expands ~ to home directory
func (s *Scanner) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
