// Package serverfx wires an apireg server with fx: configuration, rotating
// logs, the router and an HTTP server bound to the application lifecycle.
package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/broady/apireg"
	"github.com/broady/apireg/config"
	"github.com/broady/apireg/internal/logging"
	"github.com/broady/apireg/router"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Options select the configuration and the controllers to serve.
type Options struct {
	// ConfigPath is the TOML file to load. Empty means defaults plus environment.
	ConfigPath string
	// Config, when set, is used as is instead of loading ConfigPath.
	Config *config.Config
	// Controllers are mounted on the router in order.
	Controllers []apireg.Controller
}

// Module returns the fx options of a complete server. Add app-specific
// fx.Invoke calls alongside.
func Module(opts Options) fx.Option {
	return fx.Options(
		fx.Supply(opts),
		fx.Provide(
			provideConfig,
			provideLogs,
			provideSystemLogger,
			provideRouter,
			NewServer,
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(registerHooks),
	)
}

func provideConfig(opts Options) (config.Config, error) {
	if opts.Config != nil {
		cfg := *opts.Config
		return cfg, cfg.Validate()
	}
	return config.Load(opts.ConfigPath)
}

func provideLogs(lc fx.Lifecycle, cfg config.Config) (*logging.Logs, error) {
	logs, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(logs.Close))
	return logs, nil
}

func provideSystemLogger(logs *logging.Logs) *zap.Logger {
	return logs.System
}

type routerDeps struct {
	fx.In

	Opts Options
	Cfg  config.Config
	Logs *logging.Logs
}

func provideRouter(d routerDeps) (*router.Router, error) {
	r := router.New(d.Cfg, d.Logs.System).WithAccessLog(d.Logs.Access)
	if err := r.Mount(d.Opts.Controllers...); err != nil {
		return nil, err
	}
	return r, nil
}

// Server is the HTTP server of one process.
type Server struct {
	cfg    config.Config
	logger *zap.Logger
	srv    *http.Server

	mu   sync.Mutex
	addr net.Addr
}

// NewServer builds a server for r using the timeouts of cfg.
func NewServer(cfg config.Config, logger *zap.Logger, r *router.Router) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Addr:         cfg.Server.Listen,
			Handler:      r.Handler(),
			ReadTimeout:  cfg.Server.ReadTimeout.Std(),
			WriteTimeout: cfg.Server.WriteTimeout.Std(),
			IdleTimeout:  cfg.Server.IdleTimeout.Std(),
			ErrorLog:     zap.NewStdLog(logger),
		},
	}
	if s.useTLS() {
		s.srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS13}
	}
	return s
}

func (s *Server) useTLS() bool {
	return s.cfg.Server.TLSCert != "" && s.cfg.Server.TLSKey != ""
}

// Addr returns the bound address once the server has started, nil before.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds the listen address and serves in the background. Bind errors
// are returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	if s.useTLS() {
		s.logger.Info("server starting (TLS)",
			zap.Stringer("addr", ln.Addr()),
			zap.String("cert", s.cfg.Server.TLSCert),
		)
	} else {
		s.logger.Info("server starting (PLAINTEXT)", zap.Stringer("addr", ln.Addr()))
	}

	go func() {
		var err error
		if s.useTLS() {
			err = s.srv.ServeTLS(ln, s.cfg.Server.TLSCert, s.cfg.Server.TLSKey)
		} else {
			err = s.srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down, bounded by the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server stopping")
	if d := s.cfg.Server.ShutdownTimeout.Std(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return s.srv.Shutdown(ctx)
}

func registerHooks(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}
