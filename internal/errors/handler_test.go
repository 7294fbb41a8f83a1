package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	errMismatch = errors.New("mismatch")
	errDisk     = errors.New("disk full")
)

// TestErrorContext tests basic functionality of error context
func TestErrorContext(t *testing.T) {
	errCtx := NewErrorContext(errMismatch, "multiply", 7, "pair-7")

	assert.Equal(t, errMismatch, errCtx.Error)
	assert.Equal(t, "multiply", errCtx.Stage)
	assert.Equal(t, uint64(7), errCtx.Seq)
	assert.Equal(t, "pair-7", errCtx.ItemID)
	assert.False(t, errCtx.Timestamp.IsZero())
	assert.Empty(t, errCtx.Metadata)
	assert.Len(t, errCtx.Fields(), 4)
}

// TestFailFastHandler tests fail-fast handler
func TestFailFastHandler(t *testing.T) {
	handler := NewFailFastHandler()

	assert.Equal(t, "FailFast", handler.Name())
	assert.True(t, handler.CanHandle(errDisk))

	err := handler.HandleError(context.Background(), NewErrorContext(errDisk, "write", 1, "p"))
	assert.Equal(t, errDisk, err)
}

// TestContinueOnErrorHandler tests continue-on-error handler defaults
func TestContinueOnErrorHandler(t *testing.T) {
	handler := NewContinueOnErrorHandler(nil)

	assert.Equal(t, "ContinueOnError", handler.Name())
	assert.True(t, handler.CanHandle(errDisk))
	assert.NoError(t, handler.HandleError(context.Background(), NewErrorContext(errDisk, "write", 1, "p")))
}

func TestContinueOnErrorHandler_IgnoredErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var dropped []*ErrorContext

	handler := NewContinueOnErrorHandler(&ContinueOnErrorConfig{
		IgnoredErrors: []error{errMismatch},
		Logger:        zap.New(core),
		OnDropped: func(ec *ErrorContext) {
			dropped = append(dropped, ec)
		},
	})

	wrapped := fmt.Errorf("pair p1: %w", errMismatch)
	assert.True(t, handler.CanHandle(wrapped))
	assert.False(t, handler.CanHandle(errDisk))

	ctx := context.Background()
	assert.NoError(t, handler.HandleError(ctx, NewErrorContext(wrapped, "multiply", 3, "p1")))
	assert.Equal(t, errDisk, handler.HandleError(ctx, NewErrorContext(errDisk, "write", 4, "p2")))

	require.Len(t, dropped, 1)
	assert.Equal(t, uint64(3), dropped[0].Seq)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "dropping item", entry.Message)
	assert.Equal(t, "p1", entry.ContextMap()["item_id"])

	handler.AddIgnoredError(errDisk)
	assert.True(t, handler.CanHandle(errDisk))
}

func TestRouter(t *testing.T) {
	router := NewRouter()
	require.NoError(t, router.Bind(errMismatch, NewContinueOnErrorHandler(nil)))

	assert.Equal(t, "ContinueOnError", router.HandlerFor(fmt.Errorf("wrapped: %w", errMismatch)).Name())
	assert.Equal(t, "FailFast", router.HandlerFor(errDisk).Name())

	ctx := context.Background()
	assert.NoError(t, router.HandleError(ctx, NewErrorContext(errMismatch, "multiply", 1, "a")))
	assert.Equal(t, errDisk, router.HandleError(ctx, NewErrorContext(errDisk, "write", 2, "b")))
	assert.NoError(t, router.HandleError(ctx, nil))
}

func TestRouter_InvalidBindings(t *testing.T) {
	router := NewRouter()

	assert.Error(t, router.Bind(nil, NewFailFastHandler()))
	assert.Error(t, router.Bind(errDisk, nil))
	assert.Error(t, router.SetDefaultHandler(nil))

	require.NoError(t, router.SetDefaultHandler(NewContinueOnErrorHandler(nil)))
	assert.NoError(t, router.HandleError(context.Background(), NewErrorContext(errDisk, "write", 1, "x")))
}
