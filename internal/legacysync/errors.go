package legacysync

import (
	"errors"
	"fmt"

	"github.com/orthoflow/practice-service/internal/apperr"
)

var (
	ErrSyncInProgress = apperr.Conflict("a booking sync is already running")
	ErrRunNotFound    = apperr.NotFound("sync run")
	ErrSyncDisabled   = fmt.Errorf("%w: booking sync is not configured", apperr.ErrUnavailable)

	errMissingContact = errors.New("booking has neither email nor phone")
	errInvalidSlot    = errors.New("booking date or time is missing or invalid")
)
