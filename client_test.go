package apireg

import (
	"reflect"
	"strings"
	"testing"
)

func TestEndpoint_ClientScript(t *testing.T) {
	e := MustRegister(NewClass("Controller", nil), "apis", func(p Person, n float64, ctx *Context) {}, Options{Params: personParams()})

	want := `(globalThis.__apiregEndpoints = globalThis.__apiregEndpoints || {})["/api/Controller/apis"] = {"verb":"GET","parameterCount":2};` + "\n"
	if got := e.ClientScript(); got != want {
		t.Errorf("unexpected client script:\n got: %s\nwant: %s", got, want)
	}
}

func TestClientScript_EscapesPath(t *testing.T) {
	got := clientScript("/api/X/</script>", VerbPost, 0)
	if strings.Contains(got, "</script>") {
		t.Errorf("expected markup to be escaped, got %s", got)
	}
}

func TestClientBundle(t *testing.T) {
	a := NewClass("A", nil)
	MustRegister(a, "one", noop, Options{})
	b := NewClass("B", a)
	MustRegister(b, "two", noop, Options{Verb: VerbPost})

	bundle := ClientBundle(b.Registry(), a.Registry())
	lines := strings.Split(strings.TrimSuffix(bundle, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 scripts without duplicates, got %d:\n%s", len(lines), bundle)
	}
	if !strings.Contains(lines[0], `"/api/A/one"`) || !strings.Contains(lines[1], `"/api/B/two"`) {
		t.Errorf("expected scripts ordered by path, got:\n%s", bundle)
	}
	if ClientBundle() != "" {
		t.Error("expected an empty bundle for no registries")
	}
}

func TestClientManifest(t *testing.T) {
	a := NewClass("A", nil)
	MustRegister(a, "one", func(x string, ctx *Context) {}, Options{Verb: VerbPut})

	got := ClientManifest(a.Registry(), nil)
	want := map[string]ClientEntry{"/api/A/one": {Verb: VerbPut, ParameterCount: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
