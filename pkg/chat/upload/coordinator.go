// Package upload sends a batch of PDFs to the chat backend in one request.
package upload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"docchat-client/internal/constant"
	"docchat-client/internal/pkg/logger"
	"docchat-client/pkg/apperror"
	"docchat-client/pkg/backend"

	"github.com/google/uuid"
)

const module = "UploadCoordinator"

var errEmptyResult = errors.New("backend returned no document ids")

type Coordinator struct {
	backend backend.ChatBackend
	logger  logger.ILogger
}

func New(b backend.ChatBackend, log logger.ILogger) *Coordinator {
	return &Coordinator{
		backend: b,
		logger:  log,
	}
}

// Validate checks the batch without sending it.
func Validate(files []backend.File) error {
	const op = "UploadCoordinator.Upload"

	if len(files) == 0 {
		return apperror.Validation(op, apperror.ErrNoFiles)
	}
	for _, f := range files {
		if !strings.EqualFold(filepath.Ext(f.Name), constant.AllowedUploadExtension) {
			return apperror.Validation(op, fmt.Errorf("%q is not a PDF", f.Name))
		}
	}
	return nil
}

// Upload returns the full new document id set or an error; never a partial set.
func (c *Coordinator) Upload(ctx context.Context, sessionId uuid.UUID, files []backend.File) ([]string, error) {
	const op = "UploadCoordinator.Upload"

	if err := Validate(files); err != nil {
		return nil, err
	}

	c.logger.Info(module, "Uploading documents", map[string]interface{}{
		"session_id": sessionId,
		"files":      len(files),
	})

	ids, err := c.backend.AttachDocuments(ctx, sessionId, files)
	if err != nil {
		c.logger.Error(module, "Upload failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		if _, ok := apperror.KindOf(err); ok {
			return nil, err
		}
		return nil, apperror.UploadFailed(op, err)
	}
	if len(ids) == 0 {
		return nil, apperror.UploadFailed(op, errEmptyResult)
	}

	return append([]string(nil), ids...), nil
}
