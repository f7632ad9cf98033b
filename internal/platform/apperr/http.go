package apperr

import "net/http"

// HTTPStatus maps a service error to the HTTP status the route layer should
// answer with. AccessDenied and NotFound stay distinct so "you may not see
// this" is never collapsed into "this does not exist".
func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsAccessDenied(err):
		return http.StatusForbidden
	case IsDuplicate(err):
		return http.StatusConflict
	case IsConflict(err):
		return http.StatusConflict
	case IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
