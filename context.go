package apireg

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/broady/apireg/schema"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type contextKey struct {
	name string
}

var (
	settingsKey = &contextKey{"settings"}
	rpcCtxKey   = &contextKey{"rpc_context"}
)

// RPCInfo identifies the endpoint serving the current call.
type RPCInfo struct {
	Class  string
	Method string
	Path   string
}

// Settings carry router-wide behaviour into every Context.
// Routers attach them to the request with WithSettings.
type Settings struct {
	Logger             *slog.Logger
	ErrorTransformer   ErrorTransformer
	MaskInternalErrors bool
	Interceptors       []Interceptor
	// Language is used when the request has no usable Accept-Language.
	Language language.Tag
}

// WithSettings returns a copy of ctx carrying s.
func WithSettings(ctx context.Context, s Settings) context.Context {
	return context.WithValue(ctx, settingsKey, s)
}

func settingsFrom(ctx context.Context) Settings {
	s, _ := ctx.Value(settingsKey).(Settings)
	if s.Language == (language.Tag{}) {
		s.Language = language.English
	}
	return s
}

// Context is the per-call value passed as the last argument of every
// endpoint method. It reports the call's outcome back to the transport.
//
// A Context writes at most one response; later writes are dropped and logged.
type Context struct {
	context.Context

	w         http.ResponseWriter
	r         *http.Request
	info      *RPCInfo
	settings  Settings
	logger    *slog.Logger
	printer   *message.Printer
	requestID string
	written   bool
}

// NewContext builds the Context for one call from the transport pair.
func NewContext(w http.ResponseWriter, r *http.Request, info *RPCInfo) *Context {
	s := settingsFrom(r.Context())
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rid := r.Header.Get("X-Request-Id")
	if rid == "" {
		rid = uuid.NewString()
	}
	if info == nil {
		info = &RPCInfo{}
	}
	c := &Context{
		Context:   r.Context(),
		w:         w,
		r:         r,
		info:      info,
		settings:  s,
		printer:   schema.PrinterFor(r.Header.Get("Accept-Language"), s.Language),
		requestID: rid,
	}
	c.logger = logger.With(
		slog.String("path", info.Path),
		slog.String("request_id", rid),
	)
	return c
}

// FromContext returns the Context that ctx was derived from, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(rpcCtxKey).(*Context)
	return c, ok
}

// Value makes the Context recoverable through FromContext from derived contexts.
func (c *Context) Value(key any) any {
	if key == rpcCtxKey {
		return c
	}
	return c.Context.Value(key)
}

// Request returns the underlying HTTP request.
func (c *Context) Request() *http.Request { return c.r }

// Writer returns the underlying HTTP response writer.
func (c *Context) Writer() http.ResponseWriter { return c.w }

// Info returns the endpoint being served.
func (c *Context) Info() RPCInfo { return *c.info }

// Logger returns a logger annotated with the call's path and request id.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Printer returns the message printer for the caller's language.
func (c *Context) Printer() *message.Printer { return c.printer }

// RequestID returns the X-Request-Id of the call, generating one if absent.
func (c *Context) RequestID() string { return c.requestID }

// Written reports whether a response has been written.
func (c *Context) Written() bool { return c.written }

// SetHeader sets a response header. It has no effect after a response is written.
func (c *Context) SetHeader(key, value string) {
	if !c.written {
		c.w.Header().Set(key, value)
	}
}

// Success writes data as the call's result.
func (c *Context) Success(data any) {
	if !c.claim("success") {
		return
	}
	c.w.Header().Set("Content-Type", "application/json")
	c.w.WriteHeader(http.StatusOK)
	if err := encodeResponse(c.w, data); err != nil {
		c.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// Invalid reports per-field validation problems, in the given order.
func (c *Context) Invalid(fields []FieldError) {
	if !c.claim("invalid") {
		return
	}
	c.logger.Debug("arguments rejected", slog.Int("problems", len(fields)))
	writeError(c.w, ValidationError(fields), c.logger)
}

// Fail reports err through the router's error transformer.
func (c *Context) Fail(err error) {
	if !c.claim("fail") {
		return
	}
	var rpcErr *Error
	if c.settings.ErrorTransformer != nil {
		rpcErr = c.settings.ErrorTransformer(err)
	}
	if rpcErr == nil {
		rpcErr = DefaultErrorTransformer(err)
	}
	if rpcErr.Code == CodeInternal {
		c.logger.Error("endpoint failed", slog.Any("error", err))
		if c.settings.MaskInternalErrors {
			rpcErr = NewError(CodeInternal, "internal server error")
		}
	}
	writeError(c.w, rpcErr, c.logger)
}

func (c *Context) claim(kind string) bool {
	if c.written {
		c.logger.Warn("response already written", slog.String("dropped", kind))
		return false
	}
	c.written = true
	return true
}
