package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
	"github.com/gabrielfriasw/srf-escolas-sub000/services/realtime"
	"github.com/gabrielfriasw/srf-escolas-sub000/services/whatsapp"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		ExamSvc    *exam.Service
		RosterSvc  *roster.Service
		Hub        *realtime.Hub
		Linker     *whatsapp.Linker
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	registerRosterAPI(v1, s.deps.RosterSvc)
	registerExamAPI(v1, s.deps.ExamSvc, s.deps.Linker, conf.Notify.ReportRecipients)
	registerRealtimeAPI(v1, s.deps.Hub, s.deps.Logger)
}

// Start blocks until the server stops; a failure is sent on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
