package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDatabasePath returns items.db next to the executable, or in the
// working directory when the executable path is unavailable.
func DefaultDatabasePath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "items.db"
	}
	return filepath.Join(filepath.Dir(exePath), "items.db")
}

// DefaultOutputDir returns the directory JSON documents are written to.
func DefaultOutputDir() string {
	return "cloth_database"
}

// ItemIDFromPath derives an item identifier from a file name: the base name
// without extension, optionally prefixed.
func ItemIDFromPath(prefix, path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, base)
	if prefix == "" {
		return base
	}
	return prefix + "_" + base
}

// IsHashHex reports whether s is a 64 character lowercase hex digest.
func IsHashHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// ShortHash returns the first 16 characters of a digest for display.
func ShortHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "..."
}
