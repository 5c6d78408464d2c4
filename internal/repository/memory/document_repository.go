package memory

import (
	"context"
	"sort"

	"docchat-client/internal/entity"
	"docchat-client/internal/repository/contract"
	"docchat-client/internal/repository/specification"
)

type DocumentRepository struct {
	store *Store
}

func NewDocumentRepository(store *Store) contract.DocumentRepository {
	return &DocumentRepository{store: store}
}

func (r *DocumentRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	f, err := compile(specs)
	if err != nil {
		return nil, err
	}

	if err := r.store.enter(ctx, "documents.select"); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if err := r.store.fault("documents.select"); err != nil {
		return nil, err
	}

	var out []*entity.Document
	for _, row := range r.store.documents {
		if f.document(row) {
			doc := copyDocument(row)
			out = append(out, &doc)
		}
	}
	// Map iteration order is random; keep results deterministic.
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}
