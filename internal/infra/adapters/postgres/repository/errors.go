package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/qrave1/StageLive/internal/domain"
)

// wrapNotFound переводит sql.ErrNoRows в domain.ErrNotFound
func wrapNotFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}

	return fmt.Errorf("%s: %w", what, err)
}
