package apireg

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/broady/apireg/testutil"
)

func withInterceptors(req *testutil.RequestBuilder, is ...Interceptor) (*http.Request, *httptest.ResponseRecorder) {
	r, w := req.Build()
	r = r.WithContext(WithSettings(r.Context(), Settings{Interceptors: is}))
	return r, w
}

func TestInterceptors_Order(t *testing.T) {
	var order []string
	mk := func(name string) Interceptor {
		return func(ctx *Context, args []any, next Invoker) (any, error) {
			order = append(order, name+":before")
			res, err := next(ctx, args)
			order = append(order, name+":after")
			return res, err
		}
	}
	e := MustRegister(NewClass("Order", nil), "m", func(ctx *Context) {
		order = append(order, "method")
	}, Options{})

	r, w := withInterceptors(testutil.NewRequest().GET(e.Path()), mk("outer"), mk("inner"))
	if err := e.Dispatch(w, r); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	want := []string{"outer:before", "inner:before", "method", "inner:after", "outer:after"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestInterceptors_SeeTypedArgs(t *testing.T) {
	var seen []any
	spy := func(ctx *Context, args []any, next Invoker) (any, error) {
		seen = args
		return next(ctx, args)
	}
	e, _ := registerApis(t)

	r, w := withInterceptors(testutil.NewRequest().GET(e.Path()).WithArgs(map[string]any{"age": 3}, 4), spy)
	if err := e.Dispatch(w, r); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(seen) != 2 || seen[0] != (Person{Age: 3}) || seen[1] != 4.0 {
		t.Errorf("expected typed arguments, got %#v", seen)
	}
}

func TestInterceptors_ShortCircuit(t *testing.T) {
	deny := func(ctx *Context, args []any, next Invoker) (any, error) {
		return nil, NewError(CodePermissionDenied, "nope")
	}
	e, calls := registerApis(t)

	r, w := withInterceptors(testutil.NewRequest().GET(e.Path()).WithArgs(map[string]any{"age": 3}, 4), deny)
	if err := e.Dispatch(w, r); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	testutil.AssertStatus(t, w, http.StatusForbidden)
	testutil.AssertJSONError(t, w, string(CodePermissionDenied))
	if len(*calls) != 0 {
		t.Error("expected the method not to run")
	}
}

func TestInterceptors_ReplaceResult(t *testing.T) {
	wrap := func(ctx *Context, args []any, next Invoker) (any, error) {
		res, err := next(ctx, args)
		if err != nil {
			return nil, err
		}
		return map[string]any{"wrapped": res}, nil
	}
	e := MustRegister(NewClass("Wrap", nil), "m", func(ctx *Context) (string, error) {
		return "", errors.New("inner failure")
	}, Options{})
	ok := MustRegister(NewClass("Wrap", nil), "ok", func(ctx *Context) (int, error) { return 7, nil }, Options{})

	r, w := withInterceptors(testutil.NewRequest().GET(ok.Path()), wrap)
	if err := ok.Dispatch(w, r); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	testutil.AssertJSONResponse(t, w, map[string]any{"result": map[string]any{"wrapped": 7}})

	r, w = withInterceptors(testutil.NewRequest().GET(e.Path()), wrap)
	if err := e.Dispatch(w, r); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	testutil.AssertJSONError(t, w, string(CodeInternal))
}
