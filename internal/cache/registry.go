package cache

// Registry tracks which content key each browser tab currently displays.
// It is the reference-count surrogate for the Cache: a key still bound to
// some tab must not be evicted, and a key bound to no tab must not be kept.
type Registry struct {
	byTab map[int]string
}

func NewRegistry() *Registry {
	return &Registry{byTab: make(map[int]string)}
}

// Bind associates tabID with key and returns the previously bound key
// (empty if the tab was unbound). The caller decides whether the previous
// key should be evicted — on a no-op re-render prev equals key and nothing
// should be destroyed.
func (r *Registry) Bind(tabID int, key string) (prev string) {
	prev = r.byTab[tabID]
	r.byTab[tabID] = key
	return prev
}

// Unbind removes the tab's binding and returns the key it held.
func (r *Registry) Unbind(tabID int) (key string, ok bool) {
	key, ok = r.byTab[tabID]
	if ok {
		delete(r.byTab, tabID)
	}
	return key, ok
}

// Lookup returns the key bound to tabID.
func (r *Registry) Lookup(tabID int) (key string, ok bool) {
	key, ok = r.byTab[tabID]
	return key, ok
}

// RefCount returns how many tabs are currently bound to key.
func (r *Registry) RefCount(key string) int {
	n := 0
	for _, k := range r.byTab {
		if k == key {
			n++
		}
	}
	return n
}
