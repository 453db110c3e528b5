package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nugget/internal/convo"
	"nugget/internal/shared/jsonx"
)

// MemoryStore keeps all conversation documents in process memory. The test
// suite and the REPL's offline mode run against it.
type MemoryStore struct {
	mu       sync.RWMutex
	states   map[string]*convo.State
	results  map[string]jsonx.RawMessage
	contexts map[string]convo.Context
	events   map[string][]string
}

var _ convo.Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[string]*convo.State),
		results:  make(map[string]jsonx.RawMessage),
		contexts: make(map[string]convo.Context),
		events:   make(map[string][]string),
	}
}

// LoadLastState returns a copy of the stored state for the key.
func (s *MemoryStore) LoadLastState(ctx context.Context, conversationID string, source convo.Source) (*convo.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[sourceKey(conversationID, source)]
	if !ok {
		return nil, convo.ErrNotFound
	}
	return state.Clone(), nil
}

// SaveSuccessState replaces the stored state for the key.
func (s *MemoryStore) SaveSuccessState(ctx context.Context, conversationID string, source convo.Source, state *convo.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("state required")
	}
	doc := state.Clone()
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sourceKey(conversationID, source)] = doc
	return nil
}

// LoadLastResult returns a copy of the stored response document.
func (s *MemoryStore) LoadLastResult(ctx context.Context, conversationID string, source convo.Source) (jsonx.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[sourceKey(conversationID, source)]
	if !ok {
		return nil, convo.ErrNotFound
	}
	return append(jsonx.RawMessage(nil), result...), nil
}

// SaveLastResult replaces the stored response document.
func (s *MemoryStore) SaveLastResult(ctx context.Context, conversationID string, source convo.Source, result jsonx.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !jsonx.Valid(result) {
		return fmt.Errorf("result is not valid JSON")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[sourceKey(conversationID, source)] = append(jsonx.RawMessage(nil), result...)
	return nil
}

// LoadContext returns a copy of the conversation's addressing document.
func (s *MemoryStore) LoadContext(ctx context.Context, conversationID string) (*convo.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	convoCtx, ok := s.contexts[conversationID]
	if !ok {
		return nil, convo.ErrNotFound
	}
	out := convoCtx
	return &out, nil
}

// SaveContext replaces the conversation's addressing document.
func (s *MemoryStore) SaveContext(ctx context.Context, conversationID string, convoCtx *convo.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if convoCtx == nil {
		return fmt.Errorf("context required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[conversationID] = *convoCtx
	return nil
}

// GetEvents returns a copy of the property's event registry.
func (s *MemoryStore) GetEvents(ctx context.Context, propertyID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	events, ok := s.events[propertyID]
	if !ok {
		return nil, convo.ErrNotFound
	}
	return append([]string(nil), events...), nil
}

// SaveEvents replaces the property's event registry.
func (s *MemoryStore) SaveEvents(ctx context.Context, propertyID string, events []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[propertyID] = append([]string(nil), events...)
	return nil
}
