package registry

import (
	"context"
	"strings"

	"docchat-client/internal/constant"
	"docchat-client/internal/entity"
	"docchat-client/internal/pkg/logger"
	"docchat-client/internal/repository/cache"
	"docchat-client/internal/repository/specification"
	"docchat-client/internal/repository/unitofwork"
)

// Describer derives a session's description from its documents' filenames.
type Describer struct {
	uowFactory unitofwork.RepositoryFactory
	cache      cache.DescriptionCache
	logger     logger.ILogger
}

func NewDescriber(uowFactory unitofwork.RepositoryFactory, c cache.DescriptionCache, log logger.ILogger) *Describer {
	if c == nil {
		c = cache.Noop{}
	}
	return &Describer{
		uowFactory: uowFactory,
		cache:      c,
		logger:     log,
	}
}

// Describe joins the filenames in documentIds order, using a generic label
// for documents without one. A lookup failure yields "" and is not cached.
func (d *Describer) Describe(ctx context.Context, s entity.Session) string {
	if len(s.DocumentIds) == 0 {
		return ""
	}
	if desc, ok := d.cache.Get(ctx, s.Id, s.DocumentIds); ok {
		return desc
	}

	uow := d.uowFactory.NewUnitOfWork(ctx)
	docs, err := uow.DocumentRepository().FindAll(ctx, specification.ByDocumentIDs{IDs: s.DocumentIds})
	if err != nil {
		d.logger.Warn("SessionRegistry", "Failed to resolve document names", map[string]interface{}{
			"session_id": s.Id,
			"error":      err.Error(),
		})
		return ""
	}

	byId := make(map[string]*entity.Document, len(docs))
	for _, doc := range docs {
		byId[doc.Id] = doc
	}

	names := make([]string, 0, len(s.DocumentIds))
	for _, id := range s.DocumentIds {
		name := constant.UnnamedDocumentLabel
		if doc, ok := byId[id]; ok {
			if n, ok := doc.Filename(); ok {
				name = n
			}
		}
		names = append(names, name)
	}

	desc := strings.Join(names, constant.DescriptionSeparator)
	d.cache.Set(ctx, s.Id, s.DocumentIds, desc)
	return desc
}

func (d *Describer) Forget(ctx context.Context, s entity.Session) {
	d.cache.Invalidate(ctx, s.Id)
}
