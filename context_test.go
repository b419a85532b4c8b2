package apireg

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/broady/apireg/testutil"
	"golang.org/x/text/language"
)

func TestNewContext_RequestID(t *testing.T) {
	r, w := testutil.NewRequest().GET("/api/X/y").WithHeader("X-Request-Id", "abc-123").Build()
	ctx := NewContext(w, r, &RPCInfo{Class: "X", Method: "y", Path: "/api/X/y"})
	if ctx.RequestID() != "abc-123" {
		t.Errorf("expected request id from header, got %q", ctx.RequestID())
	}

	r, w = testutil.NewRequest().GET("/api/X/y").Build()
	ctx = NewContext(w, r, nil)
	if len(ctx.RequestID()) != 36 {
		t.Errorf("expected a generated UUID, got %q", ctx.RequestID())
	}
	if ctx.Info() != (RPCInfo{}) {
		t.Errorf("expected zero info, got %+v", ctx.Info())
	}
}

func TestContext_FromContext(t *testing.T) {
	r, w := testutil.NewRequest().Build()
	ctx := NewContext(w, r, &RPCInfo{Path: "/api/X/y"})

	derived, cancel := context.WithCancel(ctx)
	defer cancel()

	got, ok := FromContext(derived)
	if !ok || got != ctx {
		t.Fatal("expected FromContext to recover the call context")
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no call context in a bare context")
	}
}

func TestContext_SingleWrite(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	r, w := testutil.NewRequest().Build()
	r = r.WithContext(WithSettings(r.Context(), Settings{Logger: logger}))
	ctx := NewContext(w, r, &RPCInfo{Path: "/api/X/y"})

	ctx.Success("first")
	ctx.Fail(errors.New("second"))
	ctx.Invalid([]FieldError{{Path: "/0", Message: "third"}})

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, map[string]any{"result": "first"})
	if !ctx.Written() {
		t.Error("expected Written to report true")
	}
	if strings.Count(logs.String(), "response already written") != 2 {
		t.Errorf("expected two dropped writes to be logged, got:\n%s", logs.String())
	}
}

func TestContext_SetHeader(t *testing.T) {
	r, w := testutil.NewRequest().Build()
	ctx := NewContext(w, r, nil)

	ctx.SetHeader("X-Before", "yes")
	ctx.Success(nil)
	ctx.SetHeader("X-After", "yes")

	testutil.AssertHeader(t, w, "X-Before", "yes")
	testutil.AssertHeader(t, w, "X-After", "")
}

func TestContext_Fail(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "internal error exposed",
			err:      errors.New("db down"),
			wantCode: string(CodeInternal),
			wantMsg:  "db down",
		},
		{
			name:     "internal error masked",
			settings: Settings{MaskInternalErrors: true},
			err:      errors.New("db down"),
			wantCode: string(CodeInternal),
			wantMsg:  "internal server error",
		},
		{
			name:     "service error not masked",
			settings: Settings{MaskInternalErrors: true},
			err:      NewError(CodeNotFound, "no such user"),
			wantCode: string(CodeNotFound),
			wantMsg:  "no such user",
		},
		{
			name: "custom transformer",
			settings: Settings{ErrorTransformer: func(err error) *Error {
				if err.Error() == "db down" {
					return NewError(CodeDeadlineExceeded, "try later")
				}
				return nil
			}},
			err:      errors.New("db down"),
			wantCode: string(CodeDeadlineExceeded),
			wantMsg:  "try later",
		},
		{
			name:     "transformer falls through",
			settings: Settings{ErrorTransformer: func(error) *Error { return nil }},
			err:      NewError(CodeAlreadyExists, "taken"),
			wantCode: string(CodeAlreadyExists),
			wantMsg:  "taken",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, w := testutil.NewRequest().Build()
			r = r.WithContext(WithSettings(r.Context(), tt.settings))
			ctx := NewContext(w, r, nil)

			ctx.Fail(tt.err)

			errResp := testutil.AssertJSONError(t, w, tt.wantCode)
			if errResp.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, errResp.Message)
			}
		})
	}
}

func TestContext_Invalid(t *testing.T) {
	r, w := testutil.NewRequest().Build()
	ctx := NewContext(w, r, nil)

	ctx.Invalid([]FieldError{{Path: "/0/age", Message: "bad"}, {Path: "/1", Message: "worse"}})

	testutil.AssertStatus(t, w, http.StatusBadRequest)
	errResp := testutil.AssertJSONError(t, w, string(CodeInvalidArgument))
	if len(errResp.Fields) != 2 || errResp.Fields[1].Path != "/1" {
		t.Errorf("expected both problems in order, got %v", errResp.Fields)
	}
}

func TestContext_Language(t *testing.T) {
	r, w := testutil.NewRequest().Build()
	r = r.WithContext(WithSettings(r.Context(), Settings{Language: language.German}))
	ctx := NewContext(w, r, nil)
	if ctx.Printer() == nil {
		t.Fatal("expected a printer")
	}
	if ctx.settings.Language != language.German {
		t.Errorf("expected configured fallback language, got %s", ctx.settings.Language)
	}

	if settingsFrom(context.Background()).Language != language.English {
		t.Error("expected English as the default language")
	}
}
