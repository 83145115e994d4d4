package engine

import (
	"context"
	"runtime"
	"sort"

	"github.com/goccy/go-json"

	"slayer/internal/project"
	"slayer/internal/services"
)

// CollectStats describes one collection pass for logging and status output.
type CollectStats struct {
	Items   int
	Pages   int
	Chunks  int
	Yields  int
	Chunked bool
}

// collector deep-copies app subtrees out of the live project so encoding and
// writing never race the editing host. Projects above the item threshold are
// copied page-batch by page-batch with a cooperative yield between batches,
// keeping the host responsive during large saves.
type collector struct {
	itemThreshold int
	pageLimit     int
	yield         func(ctx context.Context) error
}

func newCollector(itemThreshold, pageLimit int) *collector {
	c := &collector{itemThreshold: itemThreshold, pageLimit: pageLimit}
	c.yield = c.yieldControl
	return c
}

func (c *collector) yieldControl(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	runtime.Gosched()
	return nil
}

// collect copies the named app slots. names must reference existing apps.
func (c *collector) collect(ctx context.Context, apps map[string]project.AppSlot, names []string) (map[string]project.AppSlot, CollectStats, error) {
	stats := CollectStats{}
	for _, name := range names {
		slot, ok := apps[name]
		if !ok {
			return nil, stats, services.Wrap(services.ErrValidation, "engine", "collect", "unknown app "+name, nil)
		}
		items, pages := measure(slot.Data)
		stats.Items += items
		stats.Pages += pages
	}

	stats.Chunked = c.itemThreshold > 0 && stats.Items > c.itemThreshold

	copied := make(map[string]project.AppSlot, len(names))
	for _, name := range names {
		slot := apps[name]
		var (
			data any
			err  error
		)
		if stats.Chunked {
			data, err = c.copyChunked(ctx, slot.Data, &stats)
		} else {
			data, err = cloneValue(slot.Data)
		}
		if err != nil {
			return nil, stats, services.Wrap(services.ErrTransient, "engine", "collect", "copy app "+name, err)
		}
		copied[name] = project.AppSlot{Active: slot.Active, Data: data}
	}
	return copied, stats, nil
}

// copyChunked copies paged subtrees in batches of pageLimit pages, yielding
// between batches. Non-paged data is copied whole with a single yield.
func (c *collector) copyChunked(ctx context.Context, data any, stats *CollectStats) (any, error) {
	pages, rest, ok := pagedData(data)
	if !ok {
		out, err := cloneValue(data)
		if err != nil {
			return nil, err
		}
		stats.Chunks++
		stats.Yields++
		if err := c.yield(ctx); err != nil {
			return nil, err
		}
		return out, nil
	}

	copiedPages := make(map[string]any, len(pages))
	batch := 0
	for _, key := range sortedKeys(pages) {
		page, err := cloneValue(pages[key])
		if err != nil {
			return nil, err
		}
		copiedPages[key] = page
		batch++
		if batch >= c.pageLimit {
			stats.Chunks++
			stats.Yields++
			if err := c.yield(ctx); err != nil {
				return nil, err
			}
			batch = 0
		}
	}
	if batch > 0 {
		stats.Chunks++
	}

	out := make(map[string]any, len(rest)+1)
	for key, value := range rest {
		copiedValue, err := cloneValue(value)
		if err != nil {
			return nil, err
		}
		out[key] = copiedValue
	}
	out["pages"] = copiedPages
	return out, nil
}

// measure counts the items and pages in one app subtree. Paged subtrees count
// one item per page entry; everything else counts as a single item.
func measure(data any) (items, pages int) {
	pageMap, _, ok := pagedData(data)
	if !ok {
		if data == nil {
			return 0, 0
		}
		return 1, 0
	}
	for _, page := range pageMap {
		if list, ok := page.([]any); ok {
			items += len(list)
		} else {
			items++
		}
	}
	return items, len(pageMap)
}

// pagedData recognizes the conventional {"pages": {id: [...]}} app shape and
// splits it into the page map and remaining sibling keys.
func pagedData(data any) (pages map[string]any, rest map[string]any, ok bool) {
	doc, isMap := data.(map[string]any)
	if !isMap {
		return nil, nil, false
	}
	pages, isMap = doc["pages"].(map[string]any)
	if !isMap {
		return nil, nil, false
	}
	rest = make(map[string]any, len(doc)-1)
	for key, value := range doc {
		if key != "pages" {
			rest[key] = value
		}
	}
	return pages, rest, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// cloneValue copies a JSON-shaped value structurally. Host payloads that are
// not generic JSON values round-trip through the serializer instead, which
// drops anything non-JSON-safe; app payloads are required to be JSON-safe.
func cloneValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool, string, float64, int, int64:
		return v, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			copied, err := cloneValue(item)
			if err != nil {
				return nil, err
			}
			out[key] = copied
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			copied, err := cloneValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = copied
		}
		return out, nil
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}
