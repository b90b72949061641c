package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	up   = pingFunc(func(context.Context) error { return nil })
	down = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

func TestCheckBasic(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "healthy", NewHealthChecker(up, nil).CheckBasic(ctx).Status)
	assert.Equal(t, "disabled", NewHealthChecker(up, nil).CheckBasic(ctx).Cache.Status)
	assert.Equal(t, "degraded", NewHealthChecker(up, down).CheckBasic(ctx).Status)

	st := NewHealthChecker(down, up).CheckBasic(ctx)
	assert.Equal(t, "unhealthy", st.Status)
	assert.Equal(t, "connection refused", st.Database.Error)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512.0 MB", formatBytes(512<<20))
	assert.Equal(t, "2.0 GB", formatBytes(2<<30))
}
