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

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/course"
	"github.com/playlms/backend/core/leaderboard"
	"github.com/playlms/backend/core/progress"
	"github.com/playlms/backend/core/user"
)

type (
	// Deps regroups the Server's dependencies.
	Deps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        *user.Service
		CourseSvc      *course.Service
		ProgressSvc    *progress.Service
		LeaderboardSvc *leaderboard.Service
		Validate       *validator.Validate
		Translator     ut.Translator
	}

	Server struct {
		addr       string
		deps       Deps
		app        *echo.Echo
		errs       chan error
		shutdownCh chan os.Signal
	}
)

func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		addr:       addr,
		deps:       deps,
		app:        echo.New(),
		errs:       make(chan error, 1),
		shutdownCh: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdownCh, os.Interrupt, syscall.SIGTERM)
	initAuth(deps.Conf)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.deps.UserSvc, s.deps.Validate)
	courses := registerCourseAPI(v1, jwt, s.deps.CourseSvc, s.deps.Validate)
	registerProgressAPI(courses, s.deps.ProgressSvc, s.deps.Validate)
	registerLeaderboardAPI(v1, jwt, s.deps.LeaderboardSvc)
}

func (s *Server) Start() {
	s.errs <- s.app.Start(s.addr)
}

// Errors reports server startup/runtime failures.
func (s *Server) Errors() <-chan error { return s.errs }

// ShutdownSignal reports OS signals asking for a graceful stop.
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdownCh }

// signalShutdown triggers a graceful shutdown; called on non-recoverable errors.
func (s *Server) signalShutdown() {
	s.shutdownCh <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to PlayLMS API!")
}
