package httpadapter

import (
	"net/http"

	"github.com/kirillkom/docflow/internal/core/domain"
)

var statusByCode = map[string]int{
	domain.CodeInvalidInput:    http.StatusBadRequest,
	domain.CodeUnauthorized:    http.StatusUnauthorized,
	domain.CodeNotFound:        http.StatusNotFound,
	domain.CodeStaleReview:     http.StatusConflict,
	domain.CodeTerminalState:   http.StatusConflict,
	domain.CodeVersionConflict: http.StatusConflict,
	domain.CodeTemporary:       http.StatusServiceUnavailable,
}

func mapErrorToHTTPStatus(err error) int {
	if status, ok := statusByCode[domain.ErrorCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
