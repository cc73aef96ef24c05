package scanner

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"

	"clothdna/imageprocessor"
	"clothdna/logging"
	"clothdna/utils"
)

// ErrDuplicateItemID is reported for a file whose derived item id was already
// taken by a file earlier in lexical order.
var ErrDuplicateItemID = errors.New("duplicate item id")

type candidate struct {
	path   string
	itemID string
	size   int64
	raw    bool

	// duplicateOf is the path that claimed itemID first, if any.
	duplicateOf string
}

// collectFiles lists loadable image files under root in lexical order and
// derives their item ids.
func collectFiles(root, prefix string, registry *imageprocessor.ImageLoaderRegistry) ([]candidate, FileStats, error) {
	var files []candidate
	var stats FileStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.LogWarning("cannot access path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || !registry.CanLoadFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			logging.LogWarning("cannot stat file", "path", path, "error", err)
			return nil
		}
		c := candidate{path: path, size: info.Size(), raw: imageprocessor.IsRawFormat(path)}
		files = append(files, c)
		stats.totalFiles++
		stats.totalBytes += c.size
		if c.raw {
			stats.rawFiles++
		}
		return nil
	})
	if err != nil {
		return nil, FileStats{}, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })

	owners := make(map[string]string, len(files))
	for i := range files {
		f := &files[i]
		f.itemID = utils.ItemIDFromPath(prefix, f.path)
		if first, ok := owners[f.itemID]; ok {
			f.duplicateOf = first
			continue
		}
		owners[f.itemID] = f.path
	}
	return files, stats, nil
}
