package services

import (
	"sort"
	"strings"
)

const durationSuffix = "_duration"

// catalogIndex looks up catalog items by id for one service.
type catalogIndex struct {
	serviceID string
	items     map[string]CatalogItem
}

func newCatalogIndex(serviceID string, catalog []CatalogItem) catalogIndex {
	idx := catalogIndex{serviceID: serviceID, items: make(map[string]CatalogItem, len(catalog))}
	for _, item := range catalog {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		if _, exists := idx.items[id]; !exists {
			idx.items[id] = item
		}
	}
	return idx
}

// resolve matches a selection key of the form "serviceId_itemId" or a bare "itemId".
func (c catalogIndex) resolve(key string) (CatalogItem, bool) {
	item, _, ok := c.resolveKey(key)
	return item, ok
}

// resolveKey is resolve that also reports whether the key carried the service prefix.
func (c catalogIndex) resolveKey(key string) (CatalogItem, bool, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return CatalogItem{}, false, false
	}
	if c.serviceID != "" {
		if stripped, ok := strings.CutPrefix(key, c.serviceID+"_"); ok {
			if item, found := c.items[stripped]; found {
				return item, true, true
			}
		}
	}
	item, found := c.items[key]
	return item, false, found
}

// selectedItem is one catalog item picked by a selection, with the key that picked it.
type selectedItem struct {
	item CatalogItem
	key  string
	qty  float64
}

// selected resolves positive quantity selections to catalog items in sorted key order.
// Each item appears once: when both the prefixed and the bare key name it, the prefixed
// key's quantity is used.
func (c catalogIndex) selected(selections SelectedItems) []selectedItem {
	var (
		out      []selectedItem
		position = make(map[string]int)
		prefixed = make(map[string]bool)
	)
	for _, key := range sortedSelectionKeys(selections) {
		qty := selections[key]
		if qty <= 0 {
			continue
		}
		item, isPrefixed, ok := c.resolveKey(key)
		if !ok {
			continue
		}
		if i, seen := position[item.ID]; seen {
			if isPrefixed && !prefixed[item.ID] {
				out[i].key, out[i].qty = key, qty
				prefixed[item.ID] = true
			}
			continue
		}
		position[item.ID] = len(out)
		prefixed[item.ID] = isPrefixed
		out = append(out, selectedItem{item: item, key: key, qty: qty})
	}
	return out
}

func (c catalogIndex) empty() bool {
	return len(c.items) == 0
}

func isDurationKey(key string) bool {
	return strings.HasSuffix(key, durationSuffix)
}

// sortedSelectionKeys returns quantity keys in stable order, skipping duration entries.
func sortedSelectionKeys(selections SelectedItems) []string {
	keys := make([]string, 0, len(selections))
	for key := range selections {
		if isDurationKey(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func chooseFirstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
