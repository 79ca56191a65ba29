package server

import (
	stderrors "errors"
	"log"
	"net/http"

	"taskboard/internal/domain/errors"

	"github.com/gin-gonic/gin"
)

func ok(ctx *gin.Context, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	ctx.JSON(http.StatusOK, body)
}

func fail(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"success": false, "message": message})
}

func abortWith(ctx *gin.Context, status int, message string) {
	ctx.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{errors.ErrUserNotFound, http.StatusNotFound},
	{errors.ErrTaskNotFound, http.StatusNotFound},
	{errors.ErrGroupNotFound, http.StatusNotFound},
	{errors.ErrNotFound, http.StatusNotFound},
	{errors.ErrForbidden, http.StatusForbidden},
	{errors.ErrUnauthorized, http.StatusUnauthorized},
	{errors.ErrTokenInvalid, http.StatusUnauthorized},
	{errors.ErrTokenRevoked, http.StatusUnauthorized},
	{errors.ErrUserAlreadyExists, http.StatusBadRequest},
	{errors.ErrEmailAlreadyExists, http.StatusBadRequest},
	{errors.ErrConflict, http.StatusBadRequest},
	{errors.ErrInvalidCredentials, http.StatusBadRequest},
	{errors.ErrValidationFailed, http.StatusBadRequest},
	{errors.ErrInvalidInput, http.StatusBadRequest},
	{errors.ErrSelfDelete, http.StatusBadRequest},
}

// respondError maps domain errors to their status. Anything unknown is
// logged with op and reported as a generic 500.
func respondError(ctx *gin.Context, op string, err error) {
	for _, e := range errorStatuses {
		if stderrors.Is(err, e.err) {
			fail(ctx, e.status, e.err.Error())
			return
		}
	}
	log.Printf("[ERROR] %s: %v", op, err)
	fail(ctx, http.StatusInternalServerError, errors.ErrInternalServer.Error())
}
