// Package errors decides what a pipeline stage does with a failed item: stop the stage or drop the item and go on
package errors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrorHandler decides the fate of a stage failure
type ErrorHandler interface {
	// HandleError returns nil when the failure was absorbed, or the error the stage must stop with
	HandleError(ctx context.Context, errCtx *ErrorContext) error

	// Name returns the name of the error handler
	Name() string

	// CanHandle determines if it can handle the error
	CanHandle(err error) bool
}

// ErrorContext describes a failure while processing one queued message
type ErrorContext struct {
	// Error that occurred
	Error error

	// Stage where the error occurred
	Stage string

	// Seq is the channel sequence number of the message being processed
	Seq uint64

	// ItemID identifies the item, e.g. the pair ID
	ItemID string

	// Timestamp when the error occurred
	Timestamp time.Time

	// Metadata contains additional metadata information
	Metadata map[string]interface{}
}

// NewErrorContext creates a new error context
func NewErrorContext(err error, stage string, seq uint64, itemID string) *ErrorContext {
	return &ErrorContext{
		Error:     err,
		Stage:     stage,
		Seq:       seq,
		ItemID:    itemID,
		Timestamp: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// Fields returns the context as zap fields
func (ec *ErrorContext) Fields() []zap.Field {
	return []zap.Field{
		zap.Error(ec.Error),
		zap.String("stage", ec.Stage),
		zap.Uint64("seq", ec.Seq),
		zap.String("item_id", ec.ItemID),
	}
}

// FailFastHandler returns every error unchanged, stopping the stage
type FailFastHandler struct {
	name string
}

// NewFailFastHandler creates a new fail-fast handler
func NewFailFastHandler() *FailFastHandler {
	return &FailFastHandler{
		name: "FailFast",
	}
}

// HandleError implements the ErrorHandler interface
func (h *FailFastHandler) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	return errCtx.Error
}

// Name returns the handler name
func (h *FailFastHandler) Name() string {
	return h.name
}

// CanHandle reports true for every error
func (h *FailFastHandler) CanHandle(err error) bool {
	return true
}

// ContinueOnErrorHandler logs the failure, drops the item, and lets the stage continue
type ContinueOnErrorHandler struct {
	name      string
	ignored   []error
	logger    *zap.Logger
	onDropped func(*ErrorContext)
	mu        sync.RWMutex
}

// ContinueOnErrorConfig contains configuration for continue-on-error handler
type ContinueOnErrorConfig struct {
	// IgnoredErrors limits the handler to errors matching one of these via errors.Is; empty means all
	IgnoredErrors []error

	// Logger receives a warning per dropped item
	Logger *zap.Logger

	// OnDropped is called after an item is dropped
	OnDropped func(*ErrorContext)
}

// NewContinueOnErrorHandler creates a continue-on-error handler
func NewContinueOnErrorHandler(config *ContinueOnErrorConfig) *ContinueOnErrorHandler {
	handler := &ContinueOnErrorHandler{
		name:   "ContinueOnError",
		logger: zap.NewNop(),
	}

	if config != nil {
		handler.ignored = append(handler.ignored, config.IgnoredErrors...)
		handler.onDropped = config.OnDropped
		if config.Logger != nil {
			handler.logger = config.Logger
		}
	}

	return handler
}

// HandleError implements the ErrorHandler interface
func (h *ContinueOnErrorHandler) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	if !h.CanHandle(errCtx.Error) {
		return errCtx.Error
	}

	h.logger.Warn("dropping item", errCtx.Fields()...)
	if h.onDropped != nil {
		h.onDropped(errCtx)
	}
	return nil
}

// Name returns the handler name
func (h *ContinueOnErrorHandler) Name() string {
	return h.name
}

// CanHandle checks if it can handle the error
func (h *ContinueOnErrorHandler) CanHandle(err error) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.ignored) == 0 {
		return true
	}
	for _, target := range h.ignored {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// AddIgnoredError adds an error to ignore
func (h *ContinueOnErrorHandler) AddIgnoredError(err error) {
	if err == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.ignored = append(h.ignored, err)
}

// Router dispatches errors to the handler bound to a matching sentinel, falling back to a default
type Router struct {
	bindings       []binding
	defaultHandler ErrorHandler
	mu             sync.RWMutex
}

type binding struct {
	target  error
	handler ErrorHandler
}

// NewRouter creates a router whose default handler is fail-fast
func NewRouter() *Router {
	return &Router{
		defaultHandler: NewFailFastHandler(),
	}
}

// Bind routes errors matching target (errors.Is) to handler. Earlier bindings win.
func (r *Router) Bind(target error, handler ErrorHandler) error {
	if target == nil {
		return fmt.Errorf("cannot bind nil error")
	}
	if handler == nil {
		return fmt.Errorf("cannot bind nil handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = append(r.bindings, binding{target: target, handler: handler})
	return nil
}

// SetDefaultHandler sets the handler used when no binding matches
func (r *Router) SetDefaultHandler(handler ErrorHandler) error {
	if handler == nil {
		return fmt.Errorf("cannot set nil as default handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = handler
	return nil
}

// HandlerFor returns the handler that would receive err
func (r *Router) HandlerFor(err error) ErrorHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.bindings {
		if errors.Is(err, b.target) {
			return b.handler
		}
	}
	return r.defaultHandler
}

// HandleError implements the ErrorHandler interface
func (r *Router) HandleError(ctx context.Context, errCtx *ErrorContext) error {
	if errCtx == nil || errCtx.Error == nil {
		return nil
	}
	return r.HandlerFor(errCtx.Error).HandleError(ctx, errCtx)
}

// Name returns the router name
func (r *Router) Name() string {
	return "Router"
}

// CanHandle reports true for every error
func (r *Router) CanHandle(err error) bool {
	return true
}
