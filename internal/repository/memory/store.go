package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docchat-client/internal/entity"
	"docchat-client/internal/repository/specification"
	"docchat-client/pkg/apperror"

	"github.com/google/uuid"
)

// Store holds the three tables in process memory. It backs offline mode and
// every orchestration test, so it honours the same specifications as the
// gorm repositories.
type Store struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]entity.Session
	documents map[string]entity.Document
	messages  []entity.ChatMessage
	faults    map[string]error
	holds     map[string]*hold
	timeout   time.Duration
}

// hold parks calls of one op until gate closes.
type hold struct {
	gate    chan struct{}
	started chan struct{}
}

func NewStore() *Store {
	return &Store{
		sessions:  make(map[uuid.UUID]entity.Session),
		documents: make(map[string]entity.Document),
		faults:    make(map[string]error),
		holds:     make(map[string]*hold),
	}
}

// SetTimeout bounds how long a call may wait on a Hold; zero waits forever.
func (s *Store) SetTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
}

// Hold blocks every call of op until release runs, the call's context ends
// or the store timeout passes. started receives once per blocked call.
func (s *Store) Hold(op string) (started <-chan struct{}, release func()) {
	h := &hold{gate: make(chan struct{}), started: make(chan struct{}, 16)}
	s.mu.Lock()
	s.holds[op] = h
	s.mu.Unlock()

	var once sync.Once
	return h.started, func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[op] == h {
				delete(s.holds, op)
			}
			s.mu.Unlock()
			close(h.gate)
		})
	}
}

// enter runs before op takes the table lock, so a held call never blocks
// other operations.
func (s *Store) enter(ctx context.Context, op string) error {
	s.mu.RLock()
	h := s.holds[op]
	timeout := s.timeout
	s.mu.RUnlock()
	if h == nil {
		return nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case h.started <- struct{}{}:
	default:
	}
	select {
	case <-h.gate:
		return nil
	case <-ctx.Done():
		return apperror.StoreUnavailable(op, fmt.Errorf("store call abandoned: %w", ctx.Err()))
	}
}

// FailOn makes every call of op ("sessions.insert", "chat_history.select", ...)
// fail with StoreUnavailable wrapping err. A nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		return apperror.StoreUnavailable(op, err)
	}
	return nil
}

// PutDocument seeds a document row, standing in for the chat backend's indexer.
func (s *Store) PutDocument(doc entity.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.Id] = copyDocument(doc)
}

// Messages returns every persisted message of a session in insertion order.
func (s *Store) Messages(sessionId uuid.UUID) []entity.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.ChatMessage
	for _, m := range s.messages {
		if m.SessionId == sessionId {
			out = append(out, m)
		}
	}
	return out
}

// Session returns the stored row, bypassing faults.
func (s *Store) Session(id uuid.UUID) (entity.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.sessions[id]
	return row.Clone(), ok
}

type snapshot struct {
	sessions  map[uuid.UUID]entity.Session
	documents map[string]entity.Document
	messages  []entity.ChatMessage
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		sessions:  make(map[uuid.UUID]entity.Session, len(s.sessions)),
		documents: make(map[string]entity.Document, len(s.documents)),
		messages:  append([]entity.ChatMessage(nil), s.messages...),
	}
	for k, v := range s.sessions {
		snap.sessions[k] = v.Clone()
	}
	for k, v := range s.documents {
		snap.documents[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = snap.sessions
	s.documents = snap.documents
	s.messages = snap.messages
}

func copyDocument(doc entity.Document) entity.Document {
	c := doc
	if doc.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(doc.Metadata))
		for k, v := range doc.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// filter is the evaluated form of a specification list.
type filter struct {
	sessionId   *uuid.UUID
	userId      *uuid.UUID
	documentIds map[string]struct{}
	orders      []specification.OrderBy
}

func compile(specs []specification.Specification) (filter, error) {
	var f filter
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.BySessionID:
			id := sp.SessionID
			f.sessionId = &id
		case specification.UserOwnedBy:
			id := sp.UserID
			f.userId = &id
		case specification.ByDocumentIDs:
			f.documentIds = make(map[string]struct{}, len(sp.IDs))
			for _, id := range sp.IDs {
				f.documentIds[id] = struct{}{}
			}
		case specification.OrderBy:
			f.orders = append(f.orders, sp)
		case specification.InsertionOrder:
			// Rows are kept in insertion order and sorted stably.
		default:
			return f, fmt.Errorf("memory: unsupported specification %T", spec)
		}
	}
	return f, nil
}

func (f filter) session(row entity.Session) bool {
	if f.sessionId != nil && row.Id != *f.sessionId {
		return false
	}
	if f.userId != nil && row.UserId != *f.userId {
		return false
	}
	return true
}

func (f filter) message(row entity.ChatMessage) bool {
	if f.sessionId != nil && row.SessionId != *f.sessionId {
		return false
	}
	if f.userId != nil && row.UserId != *f.userId {
		return false
	}
	return true
}

func (f filter) document(row entity.Document) bool {
	if f.documentIds == nil {
		return true
	}
	_, ok := f.documentIds[row.Id]
	return ok
}

func sessionColumn(row entity.Session, field string) (time.Time, error) {
	switch field {
	case "started_at":
		return row.StartedAt, nil
	case "last_updated":
		return row.LastUpdatedAt, nil
	}
	return time.Time{}, fmt.Errorf("memory: cannot order sessions by %q", field)
}

func messageColumn(row entity.ChatMessage, field string) (time.Time, error) {
	if field == "timestamp" {
		return row.Timestamp, nil
	}
	return time.Time{}, fmt.Errorf("memory: cannot order chat_history by %q", field)
}

// orderRows stable-sorts rows by the first OrderBy; later ones are ignored.
func orderRows[T any](rows []T, orders []specification.OrderBy, column func(T, string) (time.Time, error)) error {
	if len(orders) == 0 {
		return nil
	}
	order := orders[0]
	for _, row := range rows {
		if _, err := column(row, order.Field); err != nil {
			return err
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, _ := column(rows[i], order.Field)
		b, _ := column(rows[j], order.Field)
		if order.Desc {
			return a.After(b)
		}
		return a.Before(b)
	})
	return nil
}
