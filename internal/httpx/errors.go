package httpx

import (
	"errors"
	"net/http"

	"restaurant-pos/internal/models"
)

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case isBadRequest(err),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidPrice),
		errors.Is(err, models.ErrInvalidTaxRate):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrPriceNotFound),
		errors.Is(err, models.ErrTableNotFound),
		errors.Is(err, models.ErrTicketNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmptyTable),
		errors.Is(err, models.ErrDuplicateTable):
		return http.StatusConflict
	case errors.Is(err, models.ErrPersistenceFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
