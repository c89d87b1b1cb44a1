package snapshotstore

import (
	"ops-monitor/internal/opsmonitor/data"
	"sync"
	"time"
)

// Store keeps the last observed state of every order seen during the session.
// Entries are never evicted: the backend only returns currently relevant orders.
type Store struct {
	entries map[int64]*data.MonitorEntry
	mux     *sync.RWMutex
}

func New() *Store {
	return &Store{
		entries: make(map[int64]*data.MonitorEntry),
		mux:     &sync.RWMutex{},
	}
}

// Get returns a copy of the entry so callers cannot mutate the flags.
func (s *Store) Get(id int64) (data.MonitorEntry, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return data.MonitorEntry{}, false
	}
	return copyEntry(entry), true
}

// Upsert records status for id. A status change starts a fresh flag set;
// flags are then added on top.
func (s *Store) Upsert(id int64, status data.Status, seenAt time.Time, flags ...data.Status) {
	s.mux.Lock()
	defer s.mux.Unlock()
	entry, ok := s.entries[id]
	if !ok || entry.LastStatus != status {
		entry = &data.MonitorEntry{
			AlertedFlags: make(map[data.Status]struct{}),
		}
		s.entries[id] = entry
	}
	entry.LastStatus = status
	entry.LastSeenAt = seenAt
	for _, flag := range flags {
		entry.AlertedFlags[flag] = struct{}{}
	}
}

func (s *Store) HasAlerted(id int64, status data.Status) bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return false
	}
	_, alerted := entry.AlertedFlags[status]
	return alerted
}

func (s *Store) Len() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.entries)
}

func copyEntry(entry *data.MonitorEntry) data.MonitorEntry {
	flags := make(map[data.Status]struct{}, len(entry.AlertedFlags))
	for flag := range entry.AlertedFlags {
		flags[flag] = struct{}{}
	}
	return data.MonitorEntry{
		LastStatus:   entry.LastStatus,
		LastSeenAt:   entry.LastSeenAt,
		AlertedFlags: flags,
	}
}
