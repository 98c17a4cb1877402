package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"slangdict/api/internal/apperr"
	"slangdict/api/internal/auth"
	"slangdict/api/internal/logging"
	"slangdict/api/internal/metrics"
	"slangdict/api/internal/vote"
)

const actorKey = "actor"

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *slog.Logger
	registry   *prometheus.Registry
	metrics    *metrics.HTTPMetrics
	echo       *echo.Echo
}

type HTTPOption func(*HTTPServer)

func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(s *HTTPServer) {
		s.logger = logging.Module(logger, "http")
	}
}

// WithMetrics records request metrics into m and serves registry on
// /metrics.
func WithMetrics(registry *prometheus.Registry, m *metrics.HTTPMetrics) HTTPOption {
	return func(s *HTTPServer) {
		s.registry = registry
		s.metrics = m
	}
}

func NewHTTPServer(service *Service, corsOrigin string, opts ...HTTPOption) *HTTPServer {
	s := &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		logger:     logging.Module(nil, "http"),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(s.withMiddleware, s.identify)
	s.registerRoutes(e)
	s.echo = e
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

func (s *HTTPServer) registerRoutes(e *echo.Echo) {
	e.GET("/api/health", s.handleHealth)
	e.GET("/api/ready", s.handleReady)
	if s.registry != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}

	e.GET("/api/terms", s.handleListTerms)
	e.GET("/api/terms/:slug", s.handleGetTerm)
	e.GET("/api/terms/:slug/comments", s.handleListComments)
	e.GET("/api/tags/:slug/terms", s.handleTermsByTag)

	e.POST("/api/terms/:slug/comments", s.handleAddComment, requireActor)
	e.DELETE("/api/comments/:id", s.handleDeleteComment, requireActor)
	e.POST("/api/definitions/:id/vote", s.handleVote(vote.Definition), requireActor)
	e.POST("/api/comments/:id/vote", s.handleVote(vote.Comment), requireActor)
	e.POST("/api/terms/:slug/bookmark", s.handleToggleBookmark, requireActor)
	e.GET("/api/me/bookmarks", s.handleListBookmarks, requireActor)
	e.POST("/api/terms/:slug/tags", s.handleAttachTag, requireActor)
	e.POST("/api/session/logout", s.handleLogout, requireActor)
}

func (s *HTTPServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (s *HTTPServer) handleReady(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := echo.Map{
		"database": echo.Map{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = echo.Map{"status": "error", "error": err.Error()}
	}
	return c.JSON(statusCode, echo.Map{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleListTerms(c echo.Context) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	terms, err := s.service.ListTerms(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"terms": terms})
}

func (s *HTTPServer) handleGetTerm(c echo.Context) error {
	detail, err := s.service.GetTerm(c.Request().Context(), c.Param("slug"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *HTTPServer) handleListComments(c echo.Context) error {
	tree, err := s.service.ListComments(c.Request().Context(), c.Param("slug"), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"comments": tree})
}

func (s *HTTPServer) handleAddComment(c echo.Context) error {
	var body struct {
		ParentID *int64 `json:"parentId"`
		Content  string `json:"content"`
	}
	if err := decodeBody(c, &body); err != nil {
		return err
	}
	created, err := s.service.AddComment(c.Request().Context(), actorFrom(c), c.Param("slug"), body.ParentID, body.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *HTTPServer) handleDeleteComment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.service.DeleteComment(c.Request().Context(), actorFrom(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (s *HTTPServer) handleVote(target vote.Target) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		var body struct {
			TargetID *int64 `json:"targetId"`
			Action   string `json:"action"`
		}
		if err := decodeBody(c, &body); err != nil {
			return err
		}
		if body.TargetID != nil && *body.TargetID != id {
			return apperr.InvalidArgument("targetId does not match the path")
		}
		result, err := s.service.CastVote(c.Request().Context(), actorFrom(c), target, id, body.Action)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, result)
	}
}

func (s *HTTPServer) handleToggleBookmark(c echo.Context) error {
	bookmarked, err := s.service.ToggleBookmark(c.Request().Context(), actorFrom(c), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"bookmarked": bookmarked})
}

func (s *HTTPServer) handleListBookmarks(c echo.Context) error {
	items, err := s.service.ListBookmarks(c.Request().Context(), actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"bookmarks": items})
}

func (s *HTTPServer) handleAttachTag(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(c, &body); err != nil {
		return err
	}
	tag, err := s.service.AttachTag(c.Request().Context(), actorFrom(c), c.Param("slug"), body.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tag)
}

func (s *HTTPServer) handleTermsByTag(c echo.Context) error {
	terms, err := s.service.TermsByTag(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"terms": terms})
}

func (s *HTTPServer) handleLogout(c echo.Context) error {
	if err := s.service.Logout(c.Request().Context(), actorFrom(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// identify resolves the bearer token, when there is one, into the request's
// actor. A token that fails verification is rejected even on public routes.
func (s *HTTPServer) identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request())
		if token == "" {
			return next(c)
		}
		actor, err := s.service.Authenticate(c.Request().Context(), token)
		if err != nil {
			return err
		}
		c.Set(actorKey, actor)
		return next(c)
	}
}

func requireActor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if actorFrom(c).ID == "" {
			return apperr.AuthenticationRequired()
		}
		return next(c)
	}
}

func actorFrom(c echo.Context) auth.Actor {
	actor, _ := c.Get(actorKey).(auth.Actor)
	return actor
}

func (s *HTTPServer) withMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		requestID := req.Header.Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		started := time.Now()
		setCORSHeaders(c.Response().Header(), s.corsOrigin)
		c.Response().Header().Set(echo.HeaderXRequestID, requestID)

		var err error
		if req.Method == http.MethodOptions {
			err = c.NoContent(http.StatusNoContent)
		} else {
			err = next(c)
		}
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		duration := time.Since(started)
		if s.metrics != nil {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			s.metrics.RecordRequest(req.Method, route, status, duration)
		}
		s.logger.Info("request",
			"request_id", requestID,
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"duration_ms", duration.Milliseconds(),
		)
		return nil
	}
}

func (s *HTTPServer) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		writeError(c, httpErr.Code, httpCode(httpErr.Code), fmt.Sprint(httpErr.Message))
		return
	}

	status, code, message := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
	}
	writeError(c, status, code, message)
}

func httpCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return string(apperr.KindNotFound)
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusBadRequest:
		return string(apperr.KindInvalidArgument)
	default:
		return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeError(c echo.Context, status int, code, message string) {
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, echo.Map{
		"code":  code,
		"error": message,
	})
}

func decodeBody(c echo.Context, target any) error {
	body := c.Request().Body
	if body == nil {
		return nil
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.InvalidArgument("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidArgument("id must be a positive integer")
	}
	return id, nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Newf(apperr.KindInvalidArgument, "%s must be an integer", name)
	}
	return value, nil
}
