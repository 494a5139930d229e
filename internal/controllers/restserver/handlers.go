package restserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/circuitgrid/internal/analysis"
	"github.com/chrissnell/circuitgrid/internal/correlator"
	"github.com/chrissnell/circuitgrid/internal/movement"
	"github.com/chrissnell/circuitgrid/internal/render"
	"github.com/chrissnell/circuitgrid/internal/types"
	"github.com/chrissnell/circuitgrid/pkg/responseformat"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	service   *analysis.Service
	formatter *responseformat.Formatter
	logger    *zap.SugaredLogger
}

// NewHandlers creates a new handlers instance
func NewHandlers(service *analysis.Service, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{
		service:   service,
		formatter: responseformat.NewFormatter(),
		logger:    logger,
	}
}

// windowRequest carries an optional time window as text, so any accepted timestamp
// layout can be used.
type windowRequest struct {
	From string `json:"from_time"`
	To   string `json:"to_time"`
}

func (wr windowRequest) window() (types.Window, error) {
	var w types.Window
	var err error
	if s := strings.TrimSpace(wr.From); s != "" {
		if w.From, err = correlator.ParseTimestamp(s); err != nil {
			return w, fmt.Errorf("invalid from_time %q", s)
		}
	}
	if s := strings.TrimSpace(wr.To); s != "" {
		if w.To, err = correlator.ParseTimestamp(s); err != nil {
			return w, fmt.Errorf("invalid to_time %q", s)
		}
	}
	return w, nil
}

type movementTimesRequest struct {
	RouteID string `json:"route_id"`
	windowRequest
}

type timelineRequest struct {
	Routes []string      `json:"routes"`
	Detail render.Detail `json:"detail,omitempty"`
	windowRequest
}

// GetStatus reports whether the source tables can serve requests
func (h *Handlers) GetStatus(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, h.service.Status(req.Context()))
}

// GetRoutes lists the known routes
func (h *Handlers) GetRoutes(w http.ResponseWriter, req *http.Request) {
	routes := h.service.Routes(req.Context())
	if routes == nil {
		routes = []analysis.RouteInfo{}
	}
	h.write(w, req, http.StatusOK, routes)
}

// GetRouteDetails describes one route, resolving the id with the matching policy
func (h *Handlers) GetRouteDetails(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["route"]
	info, ok := h.service.RouteDetails(req.Context(), id)
	if !ok {
		h.writeError(w, req, http.StatusNotFound, fmt.Sprintf("route %q not found", id), nil)
		return
	}
	h.write(w, req, http.StatusOK, info)
}

// GetMovementTimes serves movement times from query parameters. format=csv returns the
// export file instead of a structured payload.
func (h *Handlers) GetMovementTimes(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	h.movementTimes(w, req, movementTimesRequest{
		RouteID:       q.Get("route"),
		windowRequest: windowRequest{From: q.Get("from"), To: q.Get("to")},
	})
}

// PostMovementTimes serves movement times for a JSON request body
func (h *Handlers) PostMovementTimes(w http.ResponseWriter, req *http.Request) {
	var body movementTimesRequest
	if !h.decode(w, req, &body) {
		return
	}
	h.movementTimes(w, req, body)
}

func (h *Handlers) movementTimes(w http.ResponseWriter, req *http.Request, body movementTimesRequest) {
	window, err := body.window()
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error(), nil)
		return
	}

	res, err := h.service.MovementTimes(req.Context(), body.RouteID, window)
	if err != nil {
		h.serviceError(w, req, err)
		return
	}

	if req.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "movement_times_"+res.Route.RouteID+".csv"))
		if err := movement.WriteCSV(w, res.Records); err != nil {
			h.logger.Errorf("error writing movement times CSV: %v", err)
		}
		return
	}
	h.write(w, req, http.StatusOK, res)
}

// PostTimeline renders the timeline of the requested routes
func (h *Handlers) PostTimeline(w http.ResponseWriter, req *http.Request) {
	var body timelineRequest
	if !h.decode(w, req, &body) {
		return
	}
	window, err := body.window()
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error(), nil)
		return
	}

	start := time.Now()
	res, err := h.service.Timeline(req.Context(), analysis.TimelineRequest{
		Routes: body.Routes,
		Window: window,
		Detail: body.Detail,
	})
	if err != nil {
		h.serviceError(w, req, err)
		return
	}
	h.logger.Debugf("timeline for %d routes rendered in %v", len(body.Routes), time.Since(start))
	h.write(w, req, http.StatusOK, res)
}

// ClearCache drops the route registry and table classifications
func (h *Handlers) ClearCache(w http.ResponseWriter, req *http.Request) {
	h.service.ClearCache()
	h.write(w, req, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handlers) decode(w http.ResponseWriter, req *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeError(w, req, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

func (h *Handlers) serviceError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, analysis.ErrNoRoutes), errors.Is(err, analysis.ErrBadWindow), errors.Is(err, analysis.ErrBadDetail):
		h.writeError(w, req, http.StatusBadRequest, err.Error(), nil)
	default:
		h.logger.Errorf("request failed: %v", err)
		h.writeError(w, req, http.StatusInternalServerError, "internal error", nil)
	}
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteResponse(w, req, status, data); err != nil {
		h.logger.Errorf("error encoding response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, msg string, detail any) {
	if err := h.formatter.WriteError(w, req, status, msg, detail); err != nil {
		h.logger.Errorf("error encoding error response: %v", err)
	}
}
