package session

// Snapshot is a committed state published to subscribers. Version starts at
// 1 for the first mutation and increases by one per commit.
type Snapshot struct {
	Version uint64
	State   State // shared, never mutated after publication; Clone before editing
}

// Subscriber receives snapshots synchronously, in commit order, from the
// goroutine that performed the mutation. It must not call back into the
// Store's mutators.
type Subscriber func(Snapshot)
