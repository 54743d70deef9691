package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithEntries seeds the store with entries in the given order.
// Entries that fail validation are skipped.
func WithEntries(entries ...Entry) Option {
	return func(s *MemoryStore) {
		s.seed = append(s.seed, entries...)
	}
}

// WithIDGenerator overrides how IDs are assigned to entries stored without one.
func WithIDGenerator(gen func() string) Option {
	return func(s *MemoryStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}
