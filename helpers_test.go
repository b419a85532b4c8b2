package apireg

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/broady/apireg/schema"
	"github.com/broady/apireg/testutil"
)

// Person is the object argument used throughout the dispatch tests.
type Person struct {
	Age float64 `json:"age"`
}

func personParams() []schema.Schema {
	return []schema.Schema{
		{"type": "object", "properties": map[string]any{"age": map[string]any{"type": "number"}}},
		{"type": "number"},
	}
}

// call records one invocation of an endpoint method.
type call struct {
	args []any
	ctx  *Context
}

// mustDispatch serves req and fails the test on a contract violation.
func mustDispatch(t *testing.T, e *Endpoint, req *testutil.RequestBuilder) *httptest.ResponseRecorder {
	t.Helper()
	r, w := req.Build()
	if err := e.Dispatch(w, r); err != nil {
		t.Fatalf("Dispatch(%s): %v", e.Path(), err)
	}
	return w
}

func newRequest(method, path string) (*http.Request, *httptest.ResponseRecorder) {
	return testutil.NewRequest().Method(method, path).Build()
}
