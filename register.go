package apireg

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/broady/apireg/schema"
)

// Options describe an endpoint being registered.
type Options struct {
	// Verb defaults to VerbGet.
	Verb Verb

	// Params holds one schema per positional parameter, in order.
	// Positions without a schema accept any value; the argument count is
	// always enforced.
	Params []schema.Schema

	// Handler, if set, is installed instead of the generated dispatch wrapper.
	Handler DispatchFunc
}

type resultKind int

const (
	resultNone  resultKind = iota // func(...)
	resultError                   // func(...) error
	resultValue                   // func(...) (T, error)
)

var (
	contextType = reflect.TypeOf((*Context)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Register declares method as an endpoint of target under name.
//
// method must be a function whose last parameter is *Context; the parameters
// before it are the endpoint's positional arguments. It may return nothing,
// an error, or a value and an error. Method values bind the receiver:
//
//	apireg.Register(controllerClass, "apis", (&Controller{}).Apis, apireg.Options{
//		Params: []schema.Schema{{"type": "object"}, {"type": "number"}},
//	})
//
// Registering a name already declared on target replaces it. Endpoints
// inherited from ancestors stay visible unless target declares the same name.
// All errors are *DefinitionError and leave target unchanged.
func Register(target *Class, name string, method any, opts Options) (*Endpoint, error) {
	if target == nil {
		return nil, &DefinitionError{Method: name, Reason: "nil class"}
	}
	fail := func(reason string, err error) (*Endpoint, error) {
		return nil, &DefinitionError{Class: target.name, Method: name, Reason: reason, Err: err}
	}
	if name == "" {
		return fail("empty method name", nil)
	}
	if !validSegment(target.name) {
		return fail(fmt.Sprintf("class name %q is not a path segment", target.name), nil)
	}
	if !validSegment(name) {
		return fail(fmt.Sprintf("method name %q is not a path segment", name), nil)
	}

	verb := opts.Verb
	if verb == "" {
		verb = VerbGet
	}
	if !verb.valid() {
		return fail(fmt.Sprintf("unsupported verb %q", verb), nil)
	}

	e := &Endpoint{
		class:  target,
		name:   name,
		verb:   verb,
		path:   EndpointPath(target.name, name),
		params: append([]schema.Schema(nil), opts.Params...),
	}
	if err := e.bindMethod(method); err != nil {
		return fail("invalid method", err)
	}

	v, err := schema.Compile(e.params, e.arity)
	if err != nil {
		return fail("invalid parameter schemas", err)
	}
	e.validator = v
	e.dispatch = e.serve
	if opts.Handler != nil {
		e.dispatch = opts.Handler
	}
	e.clientScript = clientScript(e.path, e.verb, e.arity)

	reg := target.ownRegistry()
	logger := target.log()
	if prev, ok := reg.entries[name]; ok && prev.class == target {
		logger.Warn("duplicate endpoint registration",
			slog.String("class", target.name),
			slog.String("method", name),
			slog.String("path", e.path))
	}
	reg.entries[name] = e

	logger.Debug("endpoint registered",
		slog.String("path", e.path),
		slog.String("verb", string(e.verb)),
		slog.Int("parameters", e.arity))
	return e, nil
}

// MustRegister is like Register but panics on error. It is intended for
// init functions, where a bad declaration must stop the program.
func MustRegister(target *Class, name string, method any, opts Options) *Endpoint {
	e, err := Register(target, name, method, opts)
	if err != nil {
		panic(err)
	}
	return e
}

// bindMethod derives the parameter count and result shape from method's signature.
func (e *Endpoint) bindMethod(method any) error {
	if method == nil {
		return fmt.Errorf("method is nil")
	}
	fn := reflect.ValueOf(method)
	t := fn.Type()
	if t.Kind() != reflect.Func {
		return fmt.Errorf("method must be a function, got %s", t)
	}
	if fn.IsNil() {
		return fmt.Errorf("method is nil")
	}
	if t.IsVariadic() {
		return fmt.Errorf("variadic methods are not supported")
	}
	n := t.NumIn()
	if n == 0 || t.In(n-1) != contextType {
		return fmt.Errorf("last parameter must be %s", contextType)
	}

	in := make([]reflect.Type, n-1)
	for i := range in {
		pt := t.In(i)
		switch pt.Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
			return fmt.Errorf("parameter %d: type %s cannot be decoded from JSON", i, pt)
		}
		in[i] = pt
	}

	switch {
	case t.NumOut() == 0:
		e.result = resultNone
	case t.NumOut() == 1 && t.Out(0) == errorType:
		e.result = resultError
	case t.NumOut() == 2 && t.Out(1) == errorType:
		e.result = resultValue
	default:
		return fmt.Errorf("results must be (), (error) or (T, error), got %s", t)
	}

	e.fn = fn
	e.in = in
	e.arity = len(in)
	return nil
}

// validSegment reports whether s can appear verbatim in an endpoint path:
// ASCII letters, digits, '_', '-' and '.', excluding "." and "..".
// Anything else could be read as a route pattern or escape the /api/ prefix.
func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}
