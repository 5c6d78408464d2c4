// Package backendtest provides an in-process ChatBackend for tests and
// offline mode.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"docchat-client/internal/entity"
	"docchat-client/pkg/backend"

	"github.com/google/uuid"
)

var ErrOutage = errors.New("backend unavailable")

// DocumentSink receives the rows an upload creates, like the real backend
// writing to the documents table.
type DocumentSink interface {
	PutDocument(doc entity.Document)
}

type Call struct {
	SessionId uuid.UUID
	Text      string
}

// Backend answers "reply: <text>" unless configured otherwise. Gates set via
// Hold and HoldUploads block calls until released, so tests can order
// arrivals.
type Backend struct {
	mu        sync.Mutex
	answerErr error
	uploadErr error
	emptyIds  bool
	gates     map[string]chan struct{}
	started   chan Call
	upload    chan struct{}
	uploading chan uuid.UUID
	calls     []Call
	uploads   map[uuid.UUID][]string
	sink      DocumentSink
}

func New(sink DocumentSink) *Backend {
	return &Backend{
		gates:     make(map[string]chan struct{}),
		started:   make(chan Call, 64),
		uploading: make(chan uuid.UUID, 64),
		uploads:   make(map[uuid.UUID][]string),
		sink:      sink,
	}
}

var _ backend.ChatBackend = (*Backend)(nil)

func (b *Backend) FailAnswers(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answerErr = err
}

func (b *Backend) FailUploads(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploadErr = err
}

// ReturnNoIds makes uploads succeed with an empty id set.
func (b *Backend) ReturnNoIds() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emptyIds = true
}

// Hold blocks answers to text until the returned release func runs.
func (b *Backend) Hold(text string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.gates[text] = ch
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// HoldUploads blocks AttachDocuments until release runs. started yields the
// session of every upload as it begins waiting.
func (b *Backend) HoldUploads() (started <-chan uuid.UUID, release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.upload = ch
	b.mu.Unlock()
	var once sync.Once
	return b.uploading, func() {
		once.Do(func() {
			b.mu.Lock()
			if b.upload == ch {
				b.upload = nil
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Started yields every Answer call as it begins.
func (b *Backend) Started() <-chan Call {
	return b.started
}

func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

func (b *Backend) Answer(ctx context.Context, sessionId uuid.UUID, text string) (string, error) {
	call := Call{SessionId: sessionId, Text: text}

	b.mu.Lock()
	b.calls = append(b.calls, call)
	gate := b.gates[text]
	err := b.answerErr
	b.mu.Unlock()

	select {
	case b.started <- call:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return "reply: " + text, nil
}

func (b *Backend) AttachDocuments(ctx context.Context, sessionId uuid.UUID, files []backend.File) ([]string, error) {
	b.mu.Lock()
	err := b.uploadErr
	empty := b.emptyIds
	gate := b.upload
	b.mu.Unlock()

	if gate != nil {
		select {
		case b.uploading <- sessionId:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if empty {
		return []string{}, nil
	}

	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = uuid.NewString()
		if b.sink != nil {
			b.sink.PutDocument(entity.Document{
				Id:       ids[i],
				Metadata: map[string]interface{}{"filename": f.Name, "session_id": sessionId.String()},
			})
		}
	}

	b.mu.Lock()
	b.uploads[sessionId] = append(b.uploads[sessionId], ids...)
	b.mu.Unlock()
	return ids, nil
}

// Uploaded returns every id produced for sessionId.
func (b *Backend) Uploaded(sessionId uuid.UUID) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.uploads[sessionId]...)
}

func (c Call) String() string {
	return fmt.Sprintf("%s:%q", c.SessionId, c.Text)
}
