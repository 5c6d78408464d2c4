// Package gate refuses sends on sessions without documents and drives the
// upload step for them.
package gate

import (
	"context"

	"docchat-client/internal/entity"
	"docchat-client/internal/pkg/logger"
	"docchat-client/pkg/apperror"
	"docchat-client/pkg/chat/switcher"

	"github.com/google/uuid"
)

const module = "DocumentGate"

// RequiresUpload reports whether s has no attached documents.
func RequiresUpload(s entity.Session) bool {
	return len(s.DocumentIds) == 0
}

type Hydrator interface {
	Hydrate(ctx context.Context, t switcher.Ticket) error
}

type Sessions interface {
	UpdateDocuments(ctx context.Context, sessionId uuid.UUID, documentIds []string) (entity.Session, error)
}

type Gate struct {
	sw       *switcher.Switch
	sessions Sessions
	hydrator Hydrator
	logger   logger.ILogger
}

func New(sw *switcher.Switch, sessions Sessions, hydrator Hydrator, log logger.ILogger) *Gate {
	return &Gate{
		sw:       sw,
		sessions: sessions,
		hydrator: hydrator,
		logger:   log,
	}
}

// OnActivate runs for the session t activated. Sessions without documents
// get the upload flow instead of hydration.
func (g *Gate) OnActivate(ctx context.Context, t switcher.Ticket, s entity.Session) error {
	if RequiresUpload(s) {
		if g.sw.Apply(t, func(l *switcher.Live) { l.PendingUpload = true }) {
			g.logger.Debug(module, "Upload required before chatting", map[string]interface{}{
				"session_id": s.Id,
				"generation": t.Generation,
			})
		}
		return nil
	}
	return g.hydrator.Hydrate(ctx, t)
}

// CompleteUpload attaches documentIds to sessionId. The store update always
// applies; hydration only follows if sessionId is still the active session,
// whichever activation made it so.
func (g *Gate) CompleteUpload(ctx context.Context, sessionId uuid.UUID, documentIds []string) (entity.Session, error) {
	const op = "DocumentGate.CompleteUpload"

	if len(documentIds) == 0 {
		return entity.Session{}, apperror.UploadFailed(op, errNoDocumentIds)
	}

	s, err := g.sessions.UpdateDocuments(ctx, sessionId, documentIds)
	if err != nil {
		return entity.Session{}, err
	}

	t, ok := g.sw.Current()
	if !ok || t.SessionId != sessionId {
		g.logger.Info(module, "Documents attached to inactive session", map[string]interface{}{
			"session_id": sessionId,
			"documents":  len(documentIds),
		})
		return s, nil
	}

	if !g.sw.Apply(t, func(l *switcher.Live) { l.PendingUpload = false }) {
		return s, nil
	}
	g.logger.Info(module, "Documents attached", map[string]interface{}{
		"session_id": sessionId,
		"documents":  len(documentIds),
	})

	if err := g.hydrator.Hydrate(ctx, t); err != nil {
		return s, err
	}
	return s, nil
}

// RequestUpload reopens the upload flow for the active session.
func (g *Gate) RequestUpload(t switcher.Ticket) bool {
	return g.sw.Apply(t, func(l *switcher.Live) { l.PendingUpload = true })
}

// DismissUpload closes the upload flow. The session keeps refusing sends.
func (g *Gate) DismissUpload(t switcher.Ticket) bool {
	return g.sw.Apply(t, func(l *switcher.Live) { l.PendingUpload = false })
}
