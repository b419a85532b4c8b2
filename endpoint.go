package apireg

import (
	"net/http"
	"reflect"

	"github.com/broady/apireg/schema"
)

// Verb is the HTTP method an endpoint is served on.
type Verb string

const (
	VerbGet    Verb = http.MethodGet
	VerbPost   Verb = http.MethodPost
	VerbPut    Verb = http.MethodPut
	VerbPatch  Verb = http.MethodPatch
	VerbDelete Verb = http.MethodDelete
)

func (v Verb) valid() bool {
	switch v {
	case VerbGet, VerbPost, VerbPut, VerbPatch, VerbDelete:
		return true
	}
	return false
}

// DispatchFunc handles one call of an endpoint.
//
// It returns an error only for contract violations (*ArgumentCountError,
// *ArgumentsError), in which case nothing has been written and the caller
// decides how to surface the failure. Validation problems and the method's
// own result are written through the call's Context.
type DispatchFunc func(w http.ResponseWriter, r *http.Request) error

// Endpoint describes one registered method. It is created once by Register
// and never modified afterwards.
type Endpoint struct {
	class        *Class
	name         string
	verb         Verb
	path         string
	arity        int
	params       []schema.Schema
	validator    *schema.Validator
	dispatch     DispatchFunc
	clientScript string

	fn     reflect.Value
	in     []reflect.Type
	result resultKind
}

// Class returns the class that declared the endpoint.
func (e *Endpoint) Class() *Class { return e.class }

// Name returns the method name the endpoint is registered under.
func (e *Endpoint) Name() string { return e.name }

// Verb returns the HTTP method the endpoint is served on.
func (e *Endpoint) Verb() Verb { return e.verb }

// Path returns /api/<Class>/<method> for the declaring class.
func (e *Endpoint) Path() string { return e.path }

// ParameterCount returns the number of positional arguments, not counting
// the trailing Context.
func (e *Endpoint) ParameterCount() int { return e.arity }

// ParamSchemas returns the declared per-position schemas.
func (e *Endpoint) ParamSchemas() []schema.Schema {
	return append([]schema.Schema(nil), e.params...)
}

// Validator returns the compiled argument validator.
func (e *Endpoint) Validator() *schema.Validator { return e.validator }

// Handler returns the dispatch wrapper installed for the endpoint.
func (e *Endpoint) Handler() DispatchFunc { return e.dispatch }

// Dispatch serves one call. See DispatchFunc.
func (e *Endpoint) Dispatch(w http.ResponseWriter, r *http.Request) error {
	return e.dispatch(w, r)
}

// ClientScript returns the JavaScript snippet describing the endpoint to callers.
func (e *Endpoint) ClientScript() string { return e.clientScript }

// EndpointPath returns the path of method on the class named class.
func EndpointPath(class, method string) string {
	return "/api/" + class + "/" + method
}
