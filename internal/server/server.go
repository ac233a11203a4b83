// Package server exposes the catalog over HTTP: session listing, message
// loading, search, delete/restore, analytics, and the SSE change stream.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/sessiond-dev/sessiond/internal/analytics"
	"github.com/sessiond-dev/sessiond/internal/load"
	"github.com/sessiond-dev/sessiond/internal/search"
	"github.com/sessiond-dev/sessiond/internal/session"
	"github.com/sessiond-dev/sessiond/internal/store"
	"github.com/sessiond-dev/sessiond/internal/turns"
	"github.com/sessiond-dev/sessiond/internal/watch"
)

// ActivityProbe reports whether a session saw a recent filesystem event.
type ActivityProbe interface {
	Active(sessionID string) bool
}

type Server struct {
	echo      *echo.Echo
	store     *store.Store
	loader    *load.Loader
	search    *search.Engine
	analytics *analytics.Engine
	hub       *watch.Hub
	activity  ActivityProbe
	log       *zap.Logger
}

func New(st *store.Store, loader *load.Loader, se *search.Engine, an *analytics.Engine,
	hub *watch.Hub, activity ActivityProbe, log *zap.Logger) *Server {

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		store:     st,
		loader:    loader,
		search:    se,
		analytics: an,
		hub:       hub,
		activity:  activity,
		log:       log,
	}

	e.GET("/api/sessions", s.listSessions)
	e.GET("/api/sessions/:provider/:id/messages", s.loadMessages)
	e.GET("/api/sessions/:provider/:id/turns", s.loadTurns)
	e.GET("/api/search", s.searchSessions)
	e.POST("/api/sessions/delete", s.deleteSession)
	e.POST("/api/sessions/restore", s.restoreSession)
	e.GET("/api/events", s.changeStream)
	e.GET("/api/analytics", s.analyticsReport)

	return s
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) listSessions(c echo.Context) error {
	opts := store.ListOptions{
		Provider: c.QueryParam("provider"),
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if since, ok := parsePeriod(c.QueryParam("period")); ok {
		opts.Since = since
	}

	recs := s.store.List(opts)
	if s.activity != nil {
		for i := range recs {
			recs[i].IsActive = s.activity.Active(recs[i].SessionID)
		}
	}
	return c.JSON(http.StatusOK, recs)
}

func (s *Server) loadMessages(c echo.Context) error {
	full := c.QueryParam("full") == "1"
	msgs, err := s.loader.Load(c.Request().Context(), c.Param("provider"), c.Param("id"), full)
	if err != nil {
		return s.fail(c, err)
	}
	if msgs == nil {
		msgs = []session.NormalizedMessage{}
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) loadTurns(c echo.Context) error {
	providerName, id := c.Param("provider"), c.Param("id")
	msgs, err := s.loader.Load(c.Request().Context(), providerName, id, true)
	if err != nil {
		return s.fail(c, err)
	}
	nodes := turns.Build(id, msgs, s.store.Snapshot())
	if nodes == nil {
		nodes = []session.TurnNode{}
	}
	return c.JSON(http.StatusOK, nodes)
}

func (s *Server) searchSessions(c echo.Context) error {
	opts := search.Options{
		Query:    c.QueryParam("q"),
		Provider: c.QueryParam("provider"),
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	hits := s.search.Search(opts)
	if hits == nil {
		hits = []session.SearchHit{}
	}
	return c.JSON(http.StatusOK, hits)
}

type mutateRequest struct {
	SessionID string `json:"sessionId"`
	FilePath  string `json:"filePath"`
}

func (s *Server) deleteSession(c echo.Context) error {
	var req mutateRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, session.ErrInvalidInput)
	}
	if err := load.Trash(req.SessionID, req.FilePath); err != nil {
		return s.fail(c, err)
	}
	s.afterMutation(c)
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) restoreSession(c echo.Context) error {
	var req mutateRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, session.ErrInvalidInput)
	}
	if err := load.Restore(req.SessionID, req.FilePath); err != nil {
		return s.fail(c, err)
	}
	s.afterMutation(c)
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) afterMutation(c echo.Context) {
	if err := s.store.Refresh(c.Request().Context()); err != nil {
		s.log.Warn("refresh after mutation", zap.Error(err))
	}
	s.hub.Publish(session.ChangeEvent{Kind: session.EventIndexUpd})
}

func (s *Server) analyticsReport(c echo.Context) error {
	opts := analytics.Options{Provider: c.QueryParam("agent")}
	if since, ok := parsePeriod(c.QueryParam("period")); ok {
		opts.Since = since
	}
	rep, err := s.analytics.Report(c.Request().Context(), opts)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// fail maps the error taxonomy onto status codes. Mutation failures are
// always explicit; read paths mostly degrade before reaching here.
func (s *Server) fail(c echo.Context, err error) error {
	var pathErr *session.PathMismatchError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, session.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &pathErr):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		s.log.Error("request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// parsePeriod turns "7d", "24h", or "30d" into a cutoff time.
func parsePeriod(p string) (time.Time, bool) {
	if p == "" || p == "all" {
		return time.Time{}, false
	}
	if strings.HasSuffix(p, "d") {
		if n, err := strconv.Atoi(strings.TrimSuffix(p, "d")); err == nil && n > 0 {
			return time.Now().AddDate(0, 0, -n), true
		}
	}
	if d, err := time.ParseDuration(p); err == nil && d > 0 {
		return time.Now().Add(-d), true
	}
	return time.Time{}, false
}
