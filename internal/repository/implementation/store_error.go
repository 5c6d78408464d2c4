package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat-client/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

// storeError classifies every remote store failure as StoreUnavailable,
// keeping the Postgres SQLSTATE when the server reported one.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		err = fmt.Errorf("%w (sqlstate %s)", err, pgErr.Code)
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("store call timed out: %w", err)
	}
	return apperror.StoreUnavailable(op, err)
}

// bound limits one store call to timeout; zero leaves ctx as is.
func bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// ClassifyStoreError is storeError for callers that drive gorm outside a
// repository, such as transaction control.
func ClassifyStoreError(op string, err error) error {
	return storeError(op, err)
}
