package identity

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/models"
)

// The allocator and ledger reject bad operations with caller-facing HTTP
// errors; the single offending call fails and all state is left unchanged.

// NewConflictError reports a ShortID already claimed by another owner.
func NewConflictError(shortID models.ShortID, ownerType models.EntityType) error {
	if ownerType != "" {
		return httperror.NewHTTPErrorf(http.StatusConflict, "short id %d is already allocated to a %s", shortID, ownerType)
	}
	return httperror.NewHTTPErrorf(http.StatusConflict, "short id %d is already allocated", shortID)
}

// NewNotFoundError reports a ShortID with no current binding. A normal,
// expected outcome of lookups, not a fault.
func NewNotFoundError(shortID models.ShortID) error {
	return httperror.NewHTTPErrorf(http.StatusNotFound, "short id %d not found", shortID)
}

// NewAlreadyBoundError reports a pool label that already belongs to an entity.
func NewAlreadyBoundError(shortID models.ShortID) error {
	return httperror.NewHTTPErrorf(http.StatusConflict, "short id %d is already bound", shortID)
}

// NewCancelledError reports a pool label that was permanently retired.
func NewCancelledError(shortID models.ShortID) error {
	return httperror.NewHTTPErrorf(http.StatusConflict, "short id %d is cancelled", shortID)
}

// IsNotFound reports whether err is the not-found condition.
func IsNotFound(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound
}

// IsConflict reports whether err is any of the conflict conditions.
func IsConflict(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusConflict
}
