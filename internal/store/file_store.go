// Package store provides the conversation store implementations behind the
// convo.Store port: a file-backed store for real deployments and an
// in-memory store for tests and the offline REPL.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"nugget/internal/convo"
	"nugget/internal/shared/jsonx"
	"nugget/internal/shared/logging"
)

// eventsCacheSize bounds the in-process front for per-property event
// registries so a hot property is not re-read from disk every turn.
const eventsCacheSize = 128

// FileStore persists conversation documents as JSON files, one directory
// per conversation. Every write replaces the whole document through a temp
// file + rename, so a reader never observes a partial document.
type FileStore struct {
	baseDir string
	logger  logging.Logger
	locks   keyedMutex
	events  *lru.Cache[string, []string]
}

var _ convo.Store = (*FileStore)(nil)

// NewFileStore creates a file-backed store rooted at baseDir. An empty
// baseDir falls back to a directory under os.TempDir().
func NewFileStore(baseDir string, logger logging.Logger) (*FileStore, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "nugget-conversations")
	}
	events, err := lru.New[string, []string](eventsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create events cache: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &FileStore{baseDir: baseDir, logger: logging.OrNop(logger), events: events}
	s.logger.Debug("conversation store at %s", baseDir)
	return s, nil
}

// LoadLastState returns the last successful turn's state for the key.
func (s *FileStore) LoadLastState(ctx context.Context, conversationID string, source convo.Source) (*convo.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.statePath(conversationID, source))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, convo.ErrNotFound
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var state convo.State
	if err := jsonx.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// SaveSuccessState replaces the stored state document for the key.
func (s *FileStore) SaveSuccessState(ctx context.Context, conversationID string, source convo.Source, state *convo.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("state required")
	}
	lock := s.locks.of(sourceKey(conversationID, source))
	lock.Lock()
	defer lock.Unlock()

	doc := state.Clone()
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	data, err := jsonx.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return atomicWrite(s.statePath(conversationID, source), data)
}

// LoadLastResult returns the previous turn's response document.
func (s *FileStore) LoadLastResult(ctx context.Context, conversationID string, source convo.Source) (jsonx.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.resultPath(conversationID, source))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, convo.ErrNotFound
		}
		return nil, fmt.Errorf("read result: %w", err)
	}
	return jsonx.RawMessage(data), nil
}

// SaveLastResult replaces the stored response document. The payload is
// written as-is and only has to be valid JSON.
func (s *FileStore) SaveLastResult(ctx context.Context, conversationID string, source convo.Source, result jsonx.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !jsonx.Valid(result) {
		return fmt.Errorf("result is not valid JSON")
	}
	lock := s.locks.of(sourceKey(conversationID, source))
	lock.Lock()
	defer lock.Unlock()

	return atomicWrite(s.resultPath(conversationID, source), result)
}

// LoadContext returns the conversation's source addressing document.
func (s *FileStore) LoadContext(ctx context.Context, conversationID string) (*convo.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.contextPath(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, convo.ErrNotFound
		}
		return nil, fmt.Errorf("read context: %w", err)
	}
	var convoCtx convo.Context
	if err := jsonx.Unmarshal(data, &convoCtx); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return &convoCtx, nil
}

// SaveContext replaces the conversation's source addressing document.
func (s *FileStore) SaveContext(ctx context.Context, conversationID string, convoCtx *convo.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if convoCtx == nil {
		return fmt.Errorf("context required")
	}
	lock := s.locks.of(contextKey(conversationID))
	lock.Lock()
	defer lock.Unlock()

	data, err := jsonx.MarshalIndent(convoCtx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	return atomicWrite(s.contextPath(conversationID), data)
}

// eventsDoc is the on-disk shape of a property's event-name registry.
type eventsDoc struct {
	PropertyID string    `json:"property_id"`
	Events     []string  `json:"events"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GetEvents returns the event names known for a property, served from the
// LRU front when possible.
func (s *FileStore) GetEvents(ctx context.Context, propertyID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if events, ok := s.events.Get(propertyID); ok {
		return append([]string(nil), events...), nil
	}
	data, err := os.ReadFile(s.eventsPath(propertyID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, convo.ErrNotFound
		}
		return nil, fmt.Errorf("read events: %w", err)
	}
	var doc eventsDoc
	if err := jsonx.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	s.events.Add(propertyID, doc.Events)
	return append([]string(nil), doc.Events...), nil
}

// SaveEvents replaces the property's event registry and refreshes the front.
func (s *FileStore) SaveEvents(ctx context.Context, propertyID string, events []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.locks.of(eventsKey(propertyID))
	lock.Lock()
	defer lock.Unlock()

	doc := eventsDoc{
		PropertyID: propertyID,
		Events:     append([]string(nil), events...),
		UpdatedAt:  time.Now(),
	}
	data, err := jsonx.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	if err := atomicWrite(s.eventsPath(propertyID), data); err != nil {
		return err
	}
	s.events.Add(propertyID, doc.Events)
	return nil
}

func (s *FileStore) convDir(conversationID string) string {
	return filepath.Join(s.baseDir, safeSegment(conversationID))
}

func (s *FileStore) statePath(conversationID string, source convo.Source) string {
	return filepath.Join(s.convDir(conversationID), fmt.Sprintf("state_%s.json", source))
}

func (s *FileStore) resultPath(conversationID string, source convo.Source) string {
	return filepath.Join(s.convDir(conversationID), fmt.Sprintf("result_%s.json", source))
}

func (s *FileStore) contextPath(conversationID string) string {
	return filepath.Join(s.convDir(conversationID), "context.json")
}

func (s *FileStore) eventsPath(propertyID string) string {
	return filepath.Join(s.baseDir, "events", safeSegment(propertyID)+".json")
}

// keyedMutex hands out one mutex per key so writes to the same document
// serialize without blocking unrelated conversations.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) of(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

func sourceKey(conversationID string, source convo.Source) string {
	return conversationID + "#" + string(source)
}

func contextKey(conversationID string) string {
	return conversationID + "#context"
}

func eventsKey(propertyID string) string {
	return "events#" + propertyID
}

// atomicWrite replaces path through a temp file + rename so a crashed write
// never leaves a truncated document behind.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// safeSegment maps an external identifier onto a filesystem-safe path
// segment.
func safeSegment(id string) string {
	id = strings.TrimSpace(id)
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		return "_"
	}
	return out
}
