package testutil_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/broady/apireg"
	"github.com/broady/apireg/schema"
	"github.com/broady/apireg/testutil"
)

var exampleClass = apireg.NewClass("Example", nil)

type Greeting struct {
	Message string `json:"message"`
	ID      int    `json:"id"`
}

type Signup struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

var (
	greet = apireg.MustRegister(exampleClass, "greet", func(s Signup, ctx *apireg.Context) (Greeting, error) {
		return Greeting{Message: "Hello, " + s.Name, ID: 123}, nil
	}, apireg.Options{Verb: apireg.VerbPost})

	search = apireg.MustRegister(exampleClass, "search", func(query string, limit int, ctx *apireg.Context) (Greeting, error) {
		return Greeting{Message: "Search: " + query, ID: limit}, nil
	}, apireg.Options{Params: []schema.Schema{{"type": "string"}, {"type": "integer", "maximum": 100}}})

	secret = apireg.MustRegister(exampleClass, "secret", func(ctx *apireg.Context) (Greeting, error) {
		if ctx.Request().Header.Get("X-API-Key") != "secret" {
			return Greeting{}, apireg.NewError(apireg.CodeUnauthenticated, "invalid api key")
		}
		ctx.SetHeader("Cache-Control", "private, max-age=60")
		return Greeting{Message: "authenticated"}, nil
	}, apireg.Options{})
)

func TestRequestBuilder(t *testing.T) {
	req, w := testutil.NewRequest().
		POST(greet.Path()).
		WithArgs(Signup{Name: "Alice", Email: "alice@example.com"}).
		Build()

	if err := greet.Dispatch(w, req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, map[string]any{
		"result": Greeting{Message: "Hello, Alice", ID: 123},
	})
}

func TestRequestBuilder_Validation(t *testing.T) {
	req, w := testutil.NewRequest().
		POST(greet.Path()).
		WithArgs(Signup{Name: "Alice", Email: "invalid-email"}).
		Build()

	if err := greet.Dispatch(w, req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	testutil.AssertStatus(t, w, http.StatusBadRequest)
	errResp := testutil.AssertJSONError(t, w, string(apireg.CodeInvalidArgument))
	if len(errResp.Fields) != 1 || errResp.Fields[0].Path != "/0/email" {
		t.Errorf("expected one field error at /0/email, got %+v", errResp.Fields)
	}
}

func TestRequestBuilder_GET(t *testing.T) {
	req, w := testutil.NewRequest().
		GET(search.Path()).
		WithArgs("golang", 10).
		Build()

	if err := search.Dispatch(w, req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, map[string]any{
		"result": Greeting{Message: "Search: golang", ID: 10},
	})
}

func TestRequestBuilder_CustomHeader(t *testing.T) {
	req, w := testutil.NewRequest().
		GET(secret.Path()).
		WithHeader("X-API-Key", "secret").
		Build()

	if err := secret.Dispatch(w, req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertHeader(t, w, "Cache-Control", "private, max-age=60")

	req, w = testutil.NewRequest().GET(secret.Path()).Build()
	if err := secret.Dispatch(w, req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}

func ExampleRequestBuilder() {
	req, w := testutil.NewRequest().
		GET(search.Path()).
		WithArgs("golang", 10).
		Build()

	_ = search.Dispatch(w, req)
	fmt.Print(w.Code, " ", w.Body.String())
	// Output: 200 {"result":{"message":"Search: golang","id":10}}
}
