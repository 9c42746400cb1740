// Package transport carries the overlay's RPC surface over HTTP/JSON: an
// echo server exposing the ring and data services, and a pooled client
// implementing chord.Transport for outgoing calls.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/DmMeta/ChordSeek/internal/chord"
	apperr "github.com/DmMeta/ChordSeek/internal/errors"
)

type Config struct {
	Port string `env:"CHORD_PORT" env-default:"50051"`
	// Zero timeouts by design: lookup chains block on downstream peers for
	// as long as they need.
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"0s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"0s"`
}

// Server hosts one node's RPC surface.
type Server struct {
	echo *echo.Echo
	cfg  Config
	log  *slog.Logger
	node *chord.Node
}

func NewServer(cfg Config, node *chord.Node, log *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("chordnode"))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			log.Debug("request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"latency", time.Since(start),
			)
			return err
		}
	})
	e.Use(hopMiddleware(node))

	s := &Server{echo: e, cfg: cfg, log: log, node: node}
	e.HTTPErrorHandler = s.handleError
	s.register()
	return s
}

func (s *Server) register() {
	ring := s.echo.Group("/chord")
	ring.POST("/join", s.join)
	ring.POST("/leave", s.leave)
	ring.GET("/find-successor", s.findSuccessor)
	ring.GET("/successor", s.getSuccessor)
	ring.PUT("/successor", s.setSuccessor)
	ring.GET("/predecessor", s.getPredecessor)
	ring.PUT("/predecessor", s.setPredecessor)
	ring.GET("/closest-preceding-finger", s.closestPrecedingFinger)
	ring.POST("/fingers/update", s.updateFingerTable)
	ring.POST("/fingers/fix", s.fixFingerTable)
	ring.POST("/hops/clear", s.clearHops)

	data := s.echo.Group("/data")
	data.POST("/request", s.requestData)
	data.POST("/store", s.storeRecords)
	data.GET("/records", s.getData)
	data.GET("/finger-table", s.fingerTable)
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info("starting rpc server", "port", s.cfg.Port)
	return s.echo.Start(":" + s.cfg.Port)
}

// Echo exposes the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// hopExempt lists the /chord accessor routes that do not count as
// lookup-path hops; /data routes never count and need no entry here.
var hopExempt = map[string]struct{}{
	"/chord/join":        {},
	"/chord/leave":       {},
	"/chord/successor":   {},
	"/chord/predecessor": {},
	"/chord/hops/clear":  {},
}

// hopMiddleware counts every incoming ring RPC that is not in the exempt
// set, mirroring the lookup-path definition of the hop metric.
func hopMiddleware(node *chord.Node) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if strings.HasPrefix(path, "/chord/") {
				if _, exempt := hopExempt[path]; !exempt {
					node.Hops().Inc()
				}
			}
			return next(c)
		}
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]any{"code": "HTTP", "message": fmt.Sprint(he.Message)})
		return
	}

	if re, ok := apperr.AsRing(err); ok {
		status := apperr.HTTPStatus(re)
		if status >= http.StatusInternalServerError {
			s.log.Error("rpc failed", "uri", c.Request().RequestURI, "error", re)
		}
		_ = c.JSON(status, re)
		return
	}

	s.log.Error("rpc failed", "uri", c.Request().RequestURI, "error", err)
	_ = c.JSON(http.StatusInternalServerError,
		map[string]any{"code": apperr.CodeInternal, "message": "internal server error"})
}
