package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	req := require.New(t)

	req.Equal(KindValidation, Kind(fmt.Errorf("%w: text is empty", ErrValidation)))
	req.Equal(KindPermission, Kind(fmt.Errorf("highlight: %w", ErrPermission)))
	req.Equal(KindInvalidState, Kind(fmt.Errorf("start: %w", ErrInvalidState)))
	req.Equal(KindNotFound, Kind(ErrNotFound))
	req.Equal(KindInternal, Kind(errors.New("boom")))
	req.Equal(KindInternal, Kind(context.DeadlineExceeded))
}
