package store

// Subscription receives change notifications for a fixed key set.
// Delivery is best-effort: a subscriber that is not draining its channel
// misses batches rather than blocking writers, and re-reads the store on
// the next one it does receive.
type Subscription struct {
	store *Store
	keys  map[string]struct{} // empty = every key
	ch    chan []string
}

// Subscribe registers interest in the given keys (all keys if none are
// given). The caller must Close the subscription when done.
func (s *Store) Subscribe(keys ...string) *Subscription {
	sub := &Subscription{
		store: s,
		keys:  make(map[string]struct{}, len(keys)),
		ch:    make(chan []string, 8),
	}
	for _, k := range keys {
		sub.keys[k] = struct{}{}
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

// C returns the notification channel. Each batch holds the changed keys
// that matched the subscription. The channel is closed by Close (or when
// the store shuts down).
func (sub *Subscription) C() <-chan []string {
	return sub.ch
}

// Close unregisters the subscription and closes its channel.
func (sub *Subscription) Close() {
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	if _, ok := sub.store.subs[sub]; ok {
		delete(sub.store.subs, sub)
		close(sub.ch)
	}
}

func (s *Store) notify(changed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		batch := changed
		if len(sub.keys) > 0 {
			batch = batch[:0:0]
			for _, k := range changed {
				if _, ok := sub.keys[k]; ok {
					batch = append(batch, k)
				}
			}
			if len(batch) == 0 {
				continue
			}
		}
		select {
		case sub.ch <- batch:
		default:
		}
	}
}
