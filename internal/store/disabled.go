package store

import "context"

// disabledStore backs the memory-only mode: no database configured, every
// operation succeeds without attempting a network call.
type disabledStore struct{}

func NewDisabled() MessageStore { return disabledStore{} }

func (disabledStore) Enabled() bool { return false }

func (disabledStore) SaveMessage(context.Context, string, string, string) error { return nil }

func (disabledStore) History(context.Context, string, int) ([]Message, error) { return nil, nil }

func (disabledStore) EnsureRoom(context.Context, string) error { return nil }

func (disabledStore) CleanupOldMessages(context.Context, int) error { return nil }
