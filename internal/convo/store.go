package convo

import (
	"context"
	"errors"

	"nugget/internal/shared/jsonx"
)

// ErrNotFound is returned when no record exists for the requested key.
var ErrNotFound = errors.New("conversation record not found")

// Store is the persistence port for conversational state. Implementations
// must serialize writes per (conversationID, source) key and replace each
// document atomically; a reader never observes a partial write.
//
// Store failures must not fail the turn: callers log and continue, at the
// cost of possibly stale state on the next turn.
type Store interface {
	// LoadLastState returns the last successful turn's state, or
	// ErrNotFound when the conversation has no history for this source.
	LoadLastState(ctx context.Context, conversationID string, source Source) (*State, error)

	// SaveSuccessState replaces the stored state for the key.
	SaveSuccessState(ctx context.Context, conversationID string, source Source, state *State) error

	// LoadLastResult and SaveLastResult keep the previous turn's response
	// envelope for follow-up adapter reuse. The payload is opaque JSON.
	LoadLastResult(ctx context.Context, conversationID string, source Source) (jsonx.RawMessage, error)
	SaveLastResult(ctx context.Context, conversationID string, source Source, result jsonx.RawMessage) error

	// LoadContext and SaveContext track the conversation's active source
	// and addressing.
	LoadContext(ctx context.Context, conversationID string) (*Context, error)
	SaveContext(ctx context.Context, conversationID string, convoCtx *Context) error

	// GetEvents and SaveEvents maintain the per-property event-name
	// registry consulted for event-filter detection.
	GetEvents(ctx context.Context, propertyID string) ([]string, error)
	SaveEvents(ctx context.Context, propertyID string, events []string) error
}
