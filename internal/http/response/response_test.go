package response

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
)

func TestStatusOKWithData(t *testing.T) {
	data := map[string]string{"key": "value"}
	resp := StatusOKWithData(data)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, data, resp.Data)
}

func TestError(t *testing.T) {
	resp := Error("something went wrong")

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "something went wrong", resp.Error)
	assert.Empty(t, resp.Kind)
}

func TestFromError(t *testing.T) {
	resp := FromError(fmt.Errorf("services.connection.RequestConnection: %w", apperr.ErrQuotaExceeded))
	assert.Equal(t, ErrorWithKind("maximum connections reached", apperr.KindQuotaExceeded), resp)

	resp = FromError(errors.New("pq: relation users does not exist"))
	assert.Equal(t, "internal error", resp.Error)
	assert.Equal(t, apperr.KindInternal, resp.Kind)
}

func TestValidationError(t *testing.T) {
	type TestStruct struct {
		RequestID string `validate:"required"`
		Action    string `validate:"oneof=accept reject"`
		Amount    int64  `validate:"gt=0"`
	}

	err := validator.New().Struct(TestStruct{Action: "maybe"})
	assert.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, apperr.KindInvalidRequest, resp.Kind)
	assert.Contains(t, resp.Error, "field RequestID is a required field")
	assert.Contains(t, resp.Error, "field Action must be one of: accept reject")
	assert.Contains(t, resp.Error, "field Amount must be gt 0")
}
