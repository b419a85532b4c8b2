package apireg

// Invoker calls the next step of an endpoint invocation with the decoded
// positional arguments.
type Invoker func(ctx *Context, args []any) (result any, err error)

// Interceptor wraps the invocation of every endpoint method served with the
// Settings it is installed in. It runs after the arguments have been
// validated and decoded, so args hold the method's typed parameters.
//
//	func timing(ctx *apireg.Context, args []any, next apireg.Invoker) (any, error) {
//	    start := time.Now()
//	    res, err := next(ctx, args)
//	    ctx.Logger().Info("call", slog.Duration("took", time.Since(start)))
//	    return res, err
//	}
//
// An interceptor can:
//   - short-circuit by returning without calling next
//   - replace the result or error of the call
//   - write the response itself through ctx
type Interceptor func(ctx *Context, args []any, next Invoker) (any, error)

// chainInterceptors combines interceptors into a single Invoker around final.
// The first interceptor is the outermost one.
func chainInterceptors(interceptors []Interceptor, final Invoker) Invoker {
	chain := final
	for i := len(interceptors) - 1; i >= 0; i-- {
		current, next := interceptors[i], chain
		chain = func(ctx *Context, args []any) (any, error) {
			return current(ctx, args, next)
		}
	}
	return chain
}
