package apireg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-playground/validator/v10"
	gschema "github.com/gorilla/schema"
	"golang.org/x/text/message"
)

var (
	validate      = validator.New()
	schemaDecoder = gschema.NewDecoder()
	cborDecoder   = mustCBORDecMode()
)

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
	validate.RegisterTagNameFunc(jsonFieldName)
}

func mustCBORDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// argsQuery is the query string shape of read-verb calls: either the whole
// array in ?args=[...] or one JSON value per repeated ?arg=.
type argsQuery struct {
	Args string   `schema:"args"`
	Arg  []string `schema:"arg"`
}

// argsBody is the body shape of write-verb calls: {"args": [...]}
type argsBody struct {
	Args json.RawMessage `json:"args"`
}

type argsCBORBody struct {
	Args []any `cbor:"args"`
}

// serve is the generated dispatch wrapper.
func (e *Endpoint) serve(w http.ResponseWriter, r *http.Request) error {
	raw, err := readArgs(r)
	if err != nil {
		return &ArgumentsError{Path: e.path, Err: err}
	}
	if len(raw) != e.arity {
		return &ArgumentCountError{Path: e.path, Want: e.arity, Got: len(raw)}
	}

	ctx := NewContext(w, r, &RPCInfo{Class: e.class.name, Method: e.name, Path: e.path})

	values := make([]any, len(raw))
	for i, m := range raw {
		dec := json.NewDecoder(bytes.NewReader(m))
		dec.UseNumber()
		if err := dec.Decode(&values[i]); err != nil {
			return &ArgumentsError{Path: e.path, Err: err}
		}
	}
	if fields := e.validator.Validate(values, ctx.Printer()); len(fields) > 0 {
		ctx.Invalid(fields)
		return nil
	}

	in, fields := e.bind(raw, ctx.Printer())
	if len(fields) > 0 {
		ctx.Invalid(fields)
		return nil
	}
	e.invoke(ctx, in)
	return nil
}

// bind decodes each argument into the method's parameter type and applies
// struct tag validation.
func (e *Endpoint) bind(raw []json.RawMessage, p *message.Printer) ([]reflect.Value, []FieldError) {
	in := make([]reflect.Value, len(raw))
	var fields []FieldError
	for i, t := range e.in {
		prefix := "/" + strconv.Itoa(i)
		ptr := reflect.New(t)
		if err := json.Unmarshal(raw[i], ptr.Interface()); err != nil {
			fields = append(fields, FieldError{Path: prefix, Message: fmt.Sprintf("cannot decode as %s", t)})
			continue
		}
		in[i] = ptr.Elem()
		if !isStruct(t) || (t.Kind() == reflect.Pointer && in[i].IsNil()) {
			continue
		}
		if err := validate.Struct(in[i].Interface()); err != nil {
			var valErrs validator.ValidationErrors
			if errors.As(err, &valErrs) {
				fields = append(fields, fieldErrors(prefix, valErrs, p)...)
			}
		}
	}
	return in, fields
}

func (e *Endpoint) invoke(ctx *Context, in []reflect.Value) {
	args := make([]any, len(in))
	for i, v := range in {
		args[i] = v.Interface()
	}
	call := chainInterceptors(ctx.settings.Interceptors, e.call)
	result, err := call(ctx, args)

	if ctx.Written() {
		if err != nil {
			ctx.Logger().Error("endpoint failed after writing a response", slog.Any("error", err))
		}
		return
	}
	if err != nil {
		ctx.Fail(err)
		return
	}
	ctx.Success(result)
}

// call is the innermost Invoker: it runs the registered method itself.
func (e *Endpoint) call(ctx *Context, args []any) (any, error) {
	in := make([]reflect.Value, len(args)+1)
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(e.in[i])
			continue
		}
		in[i] = reflect.ValueOf(a)
	}
	in[len(args)] = reflect.ValueOf(ctx)
	out := e.fn.Call(in)

	var result any
	var err error
	switch e.result {
	case resultError:
		err, _ = out[0].Interface().(error)
	case resultValue:
		result = out[0].Interface()
		err, _ = out[1].Interface().(error)
	}
	return result, err
}

// readArgs extracts the positional arguments of a call.
// An absent args value yields an empty list.
func readArgs(r *http.Request) ([]json.RawMessage, error) {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		var q argsQuery
		if err := schemaDecoder.Decode(&q, r.URL.Query()); err != nil {
			return nil, fmt.Errorf("decode query: %w", err)
		}
		switch {
		case q.Args != "" && len(q.Arg) > 0:
			return nil, errors.New("use either args or arg, not both")
		case len(q.Arg) > 0:
			raw := make([]json.RawMessage, len(q.Arg))
			for i, a := range q.Arg {
				if !json.Valid([]byte(a)) {
					return nil, fmt.Errorf("arg %d is not a JSON value", i)
				}
				raw[i] = json.RawMessage(a)
			}
			return raw, nil
		case q.Args == "":
			return nil, nil
		}
		return decodeArgsArray([]byte(q.Args))
	}

	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/cbor" {
		var body argsCBORBody
		if err := cborDecoder.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("decode cbor body: %w", err)
		}
		raw := make([]json.RawMessage, len(body.Args))
		for i, v := range body.Args {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("arg %d: %w", i, err)
			}
			raw[i] = b
		}
		return raw, nil
	}

	var body argsBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if len(body.Args) == 0 || string(body.Args) == "null" {
		return nil, nil
	}
	return decodeArgsArray(body.Args)
}

func decodeArgsArray(data []byte) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("args must be a JSON array: %w", err)
	}
	return raw, nil
}

func isStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// jsonFieldName reports struct fields by their JSON name so that validation
// paths match the wire shape.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
