package serverfx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/broady/apireg"
	"github.com/broady/apireg/config"
	"github.com/broady/apireg/router"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

type pinger struct{ apireg.BaseController }

var pingClass = apireg.NewClass("Ping", nil)

func init() {
	apireg.MustRegister(pingClass, "echo", func(s string, ctx *apireg.Context) (string, error) {
		return s, nil
	}, apireg.Options{})
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Log.Dir = t.TempDir()
	cfg.Log.Console = false
	return &cfg
}

func TestModule_ServesControllers(t *testing.T) {
	cfg := testConfig(t)
	var srv *Server
	app := fxtest.New(t,
		Module(Options{
			Config:      cfg,
			Controllers: []apireg.Controller{&pinger{apireg.NewBaseController(pingClass)}},
		}),
		fx.Populate(&srv),
	)
	app.RequireStart()

	base := "http://" + srv.Addr().String()
	resp, err := http.Get(base + "/api/Ping/echo?args=" + url.QueryEscape(`["hi"]`))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Result != "hi" {
		t.Errorf("expected result hi, got %+v (%v)", body, err)
	}

	bundle, err := http.Get(base + cfg.Client.Path)
	if err != nil {
		t.Fatalf("GET bundle: %v", err)
	}
	b, _ := io.ReadAll(bundle.Body)
	bundle.Body.Close()
	if !strings.Contains(string(b), `"/api/Ping/echo"`) {
		t.Errorf("expected bundle to list the endpoint, got %s", b)
	}

	app.RequireStop()

	access, err := os.ReadFile(filepath.Join(cfg.Log.Dir, "http-access.log"))
	if err != nil {
		t.Fatalf("read access log: %v", err)
	}
	if strings.Count(string(access), "\n") != 2 {
		t.Errorf("expected two access log lines, got:\n%s", access)
	}
	system, _ := os.ReadFile(filepath.Join(cfg.Log.Dir, "system.log"))
	for _, want := range []string{"server starting (PLAINTEXT)", "server stopping"} {
		if !strings.Contains(string(system), want) {
			t.Errorf("expected system log to contain %q", want)
		}
	}
}

func TestModule_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.TLSCert = "cert.pem"

	app := fx.New(Module(Options{Config: cfg}), fx.NopLogger)
	if err := app.Err(); err == nil || !strings.Contains(err.Error(), "tls_key") {
		t.Errorf("expected config validation error, got %v", err)
	}
}

func TestModule_MountConflict(t *testing.T) {
	other := apireg.NewClass("Ping", nil)
	apireg.MustRegister(other, "echo", func(s string, ctx *apireg.Context) (string, error) {
		return s, nil
	}, apireg.Options{})

	app := fx.New(Module(Options{
		Config: testConfig(t),
		Controllers: []apireg.Controller{
			&pinger{apireg.NewBaseController(pingClass)},
			&pinger{apireg.NewBaseController(other)},
		},
	}), fx.NopLogger, fx.Invoke(func(*router.Router) {}))
	if err := app.Err(); err == nil || !strings.Contains(err.Error(), "/api/Ping/echo") {
		t.Errorf("expected mount conflict error, got %v", err)
	}
}

func TestServer_BindError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Listen = "256.0.0.1:bad"

	var srv *Server
	app := fx.New(Module(Options{Config: cfg}), fx.NopLogger, fx.Populate(&srv))
	if err := app.Err(); err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if err := app.Start(context.Background()); err == nil {
		t.Error("expected start to fail on an invalid address")
	}
	if srv.Addr() != nil {
		t.Errorf("expected no bound address, got %v", srv.Addr())
	}
}
