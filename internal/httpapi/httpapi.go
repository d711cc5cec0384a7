// Package httpapi serves the bridge state and action invocation over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"cuety2mqtt/internal/actions"
	"cuety2mqtt/internal/feedback"
	"cuety2mqtt/internal/logger"
	"cuety2mqtt/internal/state"
	"cuety2mqtt/internal/udp"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Bridge is the part of the bridge the API drives.
type Bridge interface {
	Status() (udp.Status, string)
	Dispatch(a actions.Action) error
}

// Variables is the read side of the state store.
type Variables interface {
	Variables() []state.Variable
	Lookup(name string) (state.Value, bool)
}

// Feedbacks evaluates configured and ad-hoc controls.
type Feedbacks interface {
	Controls() []feedback.Control
	Evaluate(control feedback.Control) (feedback.Style, bool)
}

// Server REST API.
type Server struct {
	log       logger.Logger
	listen    string
	e         *echo.Echo
	bridge    Bridge
	variables Variables
	feedbacks Feedbacks
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status  udp.Status `json:"status"`
	Message string     `json:"message,omitempty"`
}

// FeedbackResponse is a style decision.
type FeedbackResponse struct {
	Control  string        `json:"control,omitempty"`
	Kind     feedback.Kind `json:"kind"`
	Index    int           `json:"index,omitempty"`
	Override bool          `json:"override"`
	*feedback.Style
}

// NewServer конструктор.
func NewServer(log logger.Logger, listen string, bridge Bridge, variables Variables, feedbacks Feedbacks) *Server {
	s := &Server{
		log:       log,
		listen:    listen,
		bridge:    bridge,
		variables: variables,
		feedbacks: feedbacks,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.log.With(logger.Fields{"module": "http", "status": v.Status}).Debugf("%s %s", v.Method, v.URI)
			return nil
		},
	}))

	e.GET("/status", s.handleStatus)
	e.GET("/variables", s.handleVariables)
	e.GET("/variables/:name", s.handleVariable)
	e.GET("/actions", s.handleActionDefinitions)
	e.POST("/actions/:action", s.handleAction)
	e.GET("/feedbacks", s.handleFeedbackDefinitions)
	e.GET("/feedbacks/:kind", s.handleFeedback)
	e.GET("/feedbacks/:kind/:index", s.handleFeedback)
	e.GET("/controls", s.handleControls)

	s.e = e
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start() error {
	go func() {
		if err := s.e.Start(s.listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.With(logger.Fields{"module": "http"}).Errorf("server stopped: %v", err)
		}
	}()
	s.log.With(logger.Fields{"module": "http"}).Infof("listening on %s", s.listen)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) handleStatus(c echo.Context) error {
	status, msg := s.bridge.Status()
	return c.JSON(http.StatusOK, StatusResponse{Status: status, Message: msg})
}

func (s *Server) handleVariables(c echo.Context) error {
	return c.JSON(http.StatusOK, s.variables.Variables())
}

func (s *Server) handleVariable(c echo.Context) error {
	name := c.Param("name")
	v, ok := s.variables.Lookup(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown variable "+name)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"name": name, "value": v})
}

func (s *Server) handleActionDefinitions(c echo.Context) error {
	return c.JSON(http.StatusOK, actions.Definitions())
}

func (s *Server) handleAction(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var opts actions.Options
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &opts); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "options: "+err.Error())
		}
	}

	a, err := actions.Validate(actions.Action{ID: c.Param("action"), Options: opts})
	switch {
	case errors.Is(err, actions.ErrUnknownAction):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.bridge.Dispatch(a); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusAccepted, a)
}

func (s *Server) handleFeedbackDefinitions(c echo.Context) error {
	return c.JSON(http.StatusOK, feedback.Definitions())
}

// handleFeedback evaluates an ad-hoc control; fg and bg override the default colors.
func (s *Server) handleFeedback(c echo.Context) error {
	kind := feedback.Kind(c.Param("kind"))
	if !feedback.ValidKind(kind) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown feedback "+string(kind))
	}

	opts := feedback.DefaultOptions(kind)
	if p := c.Param("index"); p != "" {
		idx, err := strconv.Atoi(p)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "index: "+err.Error())
		}
		opts.Index = idx
	}
	for _, q := range []struct {
		name string
		dst  *feedback.Color
	}{{"fg", &opts.Fg}, {"bg", &opts.Bg}} {
		if v := c.QueryParam(q.name); v != "" {
			col, err := feedback.ParseColor(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, q.name+": "+err.Error())
			}
			*q.dst = col
		}
	}
	if err := feedback.CheckOptions(kind, opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, s.evaluate(feedback.Control{Kind: kind, Options: opts}))
}

func (s *Server) handleControls(c echo.Context) error {
	controls := s.feedbacks.Controls()
	out := make([]FeedbackResponse, 0, len(controls))
	for _, ctl := range controls {
		out = append(out, s.evaluate(ctl))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) evaluate(ctl feedback.Control) FeedbackResponse {
	style, ok := s.feedbacks.Evaluate(ctl)
	r := FeedbackResponse{Control: ctl.Name, Kind: ctl.Kind, Override: ok}
	if ctl.Kind != feedback.BlackoutMode {
		r.Index = ctl.Options.Index
	}
	if ok {
		r.Style = &style
	}
	return r
}
