package store

import "time"

// gcLoop periodically removes expired keys.
func (s *Store) gcLoop() {
	defer close(s.gcDone)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			removed := s.Sweep()
			if removed > 0 {
				s.logger.Debug("swept expired keys", "removed", removed)
				if s.onSweep != nil {
					s.onSweep(removed)
				}
			}
		}
	}
}

// Sweep removes every key whose expiry instant is at or before now and
// returns how many keys were removed. Reads never depend on it having run.
//
// Expiry entries without a key are dropped silently and not counted.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, at := range s.expires {
		if _, ok := s.data[key]; !ok {
			delete(s.expires, key)
			continue
		}
		if at <= now {
			delete(s.data, key)
			delete(s.expires, key)
			removed++
		}
	}
	return removed
}
