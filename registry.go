package ftsync

import (
	"sort"
	"sync"
)

// Registry maps table names to subscriptions. Entries are only added by
// registration and removed when registration fails or the Syncer closes.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func newRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscription)}
}

// Lookup returns the subscription of table.
func (r *Registry) Lookup(table string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[table]
	return s, ok
}

// Tables returns the registered table names, sorted.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.subs))
	for t := range r.subs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// add installs sub unless its table is already registered.
func (r *Registry) add(sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.Table()]; ok {
		return false
	}
	r.subs[sub.Table()] = sub
	return true
}

func (r *Registry) remove(table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, table)
}

func (r *Registry) all() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table() < out[j].Table() })
	return out
}
