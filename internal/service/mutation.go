package service

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/repository"
)

// pairedWrite keeps a cache change and a canonical document write together.
// change runs inside a cache transaction; when it reports true, write runs
// before the commit. A failed write rolls the transaction back. A failed
// commit after a successful write calls restore, whose own failure is only
// logged.
func pairedWrite(
	ctx context.Context,
	cache *repository.Cache,
	log zerolog.Logger,
	op string,
	change func(tx *gorm.DB) (bool, error),
	write func() error,
	restore func() error,
) error {
	written := false
	err := cache.Transaction(ctx, func(tx *gorm.DB) error {
		proceed, err := change(tx)
		if err != nil || !proceed {
			return err
		}
		if err := write(); err != nil {
			return err
		}
		written = true
		return nil
	})
	if err == nil {
		return nil
	}
	if written {
		if rerr := restore(); rerr != nil {
			log.Error().Err(rerr).Str("op", op).Msg("restoring canonical document failed")
		}
	}
	return typed(op, err)
}

// typed keeps errors that already carry a kind and marks the rest as
// database errors.
func typed(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Database(op, err)
}
