// Package registry keeps registered items in memory.
package registry

import (
	"sort"
	"sync"

	"clothdna/types"
)

// Memory is a concurrent in-memory item repository. Writes to different ids
// never contend on a shared lock; concurrent writes to one id are
// last-write-wins.
type Memory struct {
	items sync.Map // item id -> types.StoredItem
}

// NewMemory returns an empty repository.
func NewMemory() *Memory {
	return &Memory{}
}

// Put stores item under its DNA item id.
func (m *Memory) Put(item types.StoredItem) error {
	if item.DNA.ItemID == "" {
		return types.ErrInvalidItem
	}
	m.items.Store(item.DNA.ItemID, item)
	return nil
}

// Get returns the item stored under itemID.
func (m *Memory) Get(itemID string) (types.StoredItem, bool, error) {
	v, ok := m.items.Load(itemID)
	if !ok {
		return types.StoredItem{}, false, nil
	}
	return v.(types.StoredItem), true, nil
}

// Exists reports whether itemID is stored.
func (m *Memory) Exists(itemID string) (bool, error) {
	_, ok := m.items.Load(itemID)
	return ok, nil
}

// List returns all items ordered by id.
func (m *Memory) List() ([]types.StoredItem, error) {
	var items []types.StoredItem
	m.items.Range(func(_, v any) bool {
		items = append(items, v.(types.StoredItem))
		return true
	})
	sort.Slice(items, func(i, j int) bool {
		return items[i].DNA.ItemID < items[j].DNA.ItemID
	})
	return items, nil
}

// Len returns the number of stored items.
func (m *Memory) Len() int {
	n := 0
	m.items.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
