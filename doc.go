// Package apireg declares RPC endpoints on classes of controllers and
// generates their dispatch wrappers.
//
// A Class stands for a controller type. Methods are registered on it with
// Register, each with the HTTP verb it is served on and an optional JSON
// Schema per positional argument:
//
//	var Controller = apireg.NewClass("Controller", nil)
//
//	var _ = apireg.MustRegister(Controller, "apis", func(p Person, n float64, ctx *apireg.Context) (Reply, error) {
//	    ...
//	}, apireg.Options{Params: []schema.Schema{personSchema, {"type": "number"}}})
//
// The endpoint is reachable at /api/Controller/apis. Its parameter count is
// the number of method parameters before the trailing *Context.
//
// Subclasses created with NewClass(name, parent) see every endpoint of their
// ancestors. Their own registrations never modify an ancestor's registry.
//
// Each endpoint's Dispatch reads the call's arguments, enforces the
// parameter count, validates against the compiled schemas and invokes the
// method. Validation problems are written through the Context as a 400
// invalid_argument response. A wrong argument count or an unreadable args
// value is returned as an error for the router to surface.
package apireg
