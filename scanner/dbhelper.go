package scanner

import (
	"fmt"

	"clothdna/logging"
)

// ExistenceChecker reports whether an item id is already registered.
type ExistenceChecker interface {
	Exists(itemID string) (bool, error)
}

// checkAndSkipExisting returns a result when the item is already registered
// and the scan is not forced, nil when the file must be processed.
func checkAndSkipExisting(existing ExistenceChecker, path, itemID string, options ScanOptions) *ProcessItemResult {
	if options.Force || existing == nil {
		return nil
	}
	exists, err := existing.Exists(itemID)
	if err != nil {
		return &ProcessItemResult{
			Path:   path,
			ItemID: itemID,
			Error:  fmt.Errorf("repository error for %s: %v", itemID, err),
		}
	}
	if exists {
		logging.DebugLog("skipping registered item", "item_id", itemID, "path", path)
		return &ProcessItemResult{
			Path:    path,
			ItemID:  itemID,
			Success: true,
			Skipped: true,
		}
	}
	return nil
}
