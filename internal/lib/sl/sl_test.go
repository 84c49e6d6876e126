package sl_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := errors.New("something went wrong")
	attr := sl.Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.NotPanics(t, func() {
		attr := sl.Err(nil)
		assert.Equal(t, "<nil>", attr.Value.String())
	})
}

func TestKind(t *testing.T) {
	attr := sl.Kind(fmt.Errorf("op: %w", apperr.ErrQuotaExceeded))

	assert.Equal(t, "kind", attr.Key)
	assert.Equal(t, apperr.KindQuotaExceeded, attr.Value.String())
}

func TestSecurity(t *testing.T) {
	attr := sl.Security("payment_signature_mismatch")

	assert.Equal(t, "security_event", attr.Key)
	assert.Equal(t, "payment_signature_mismatch", attr.Value.String())
}

func TestNew_LevelByEnv(t *testing.T) {
	var buf bytes.Buffer

	assert.True(t, sl.New("local", &buf).Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, sl.New("dev", &buf).Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, sl.New("prod", &buf).Enabled(context.Background(), slog.LevelDebug))

	sl.New("prod", &buf).Info("started", slog.String("env", "prod"))
	assert.Contains(t, buf.String(), "msg=started")
	assert.Contains(t, buf.String(), "env=prod")
}
