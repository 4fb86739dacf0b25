package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("load case: %w", NotFound("case", nil))

	assert.True(t, stderrors.Is(err, NotFoundKind))
	assert.False(t, stderrors.Is(err, ValidationKind))
	assert.True(t, HasCode(err, ErrNotFound))
	assert.Equal(t, ErrNotFound, CodeOf(err))
}

func TestHasCodeLooksThroughNestedAppErrors(t *testing.T) {
	inner := Storage("failed to upload scan.stl", stderrors.New("bucket gone"))
	outer := Internal(inner)

	assert.True(t, HasCode(outer, ErrStorage))
	assert.Equal(t, ErrInternal, CodeOf(outer))
	assert.False(t, HasCode(stderrors.New("plain"), ErrStorage))
}

func TestStatusCode(t *testing.T) {
	cases := map[*AppError]int{
		Validation("bad", nil):            http.StatusBadRequest,
		NotFound("case", nil):             http.StatusNotFound,
		Forbidden("no"):                   http.StatusForbidden,
		Unauthorized(nil):                 http.StatusUnauthorized,
		InvalidTransition("done", "sent"): http.StatusConflict,
		Storage("upload", nil):            http.StatusBadGateway,
		EmptyBundle("empty"):              http.StatusUnprocessableEntity,
		Internal(nil):                     http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, err.StatusCode(), err.Error())
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Storage("failed to upload a.png", stderrors.New("timeout"))
	assert.Equal(t, "failed to upload a.png: timeout", err.Error())
}
