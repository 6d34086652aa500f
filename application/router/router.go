// Package router maps an inbound (method, path) pair to a handler and
// produces a structured response. Routing never fails: unknown pairs get a
// 404 and request bodies are passed through without validation.
package router

import (
	"log/slog"
	"net/http"

	"github.com/reglet-dev/ledger-guest/domain/entities"
	"github.com/reglet-dev/ledger-guest/domain/errors"
)

// DataPath is the only resource served by the default routing table.
const DataPath = "/api/data"

// HandlerFunc handles a routed request.
type HandlerFunc func(req entities.Request) entities.Response

type routeKey struct {
	method string
	path   string
}

// Router is a table of exact (method, path) routes.
type Router struct {
	logger *slog.Logger
	routes map[routeKey]HandlerFunc
}

// New creates a Router with the default /api/data routes registered.
// A nil logger discards diagnostics.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Router{
		logger: logger,
		routes: make(map[routeKey]HandlerFunc),
	}
	r.Handle(http.MethodGet, DataPath, handleGetData)
	r.Handle(http.MethodPost, DataPath, handlePostData)
	r.Handle(http.MethodPut, DataPath, handlePutData)
	r.Handle(http.MethodDelete, DataPath, handleDeleteData)
	return r
}

// Handle registers h for an exact method and path, replacing any previous
// handler for the pair.
func (r *Router) Handle(method, path string, h HandlerFunc) {
	r.routes[routeKey{method: method, path: path}] = h
}

// Route dispatches req. Method and path are matched case-sensitively.
func (r *Router) Route(req entities.Request) entities.Response {
	h, ok := r.routes[routeKey{method: req.Method, path: req.Path}]
	if !ok {
		r.logger.Debug("no route", "method", req.Method, "path", req.Path)
		return NotFound()
	}
	resp := h(req)
	r.logger.Debug("routed request", "method", req.Method, "path", req.Path, "status", resp.StatusCode)
	return resp
}

func handleGetData(entities.Request) entities.Response {
	return jsonResponse(http.StatusOK, map[string]any{
		"message": "Hello from WebAssembly API!",
	})
}

func handlePostData(req entities.Request) entities.Response {
	return jsonResponse(http.StatusCreated, map[string]any{
		"message":  "Data created successfully",
		"received": req.Body,
	})
}

func handlePutData(req entities.Request) entities.Response {
	return jsonResponse(http.StatusOK, map[string]any{
		"message":  "Data updated successfully",
		"received": req.Body,
	})
}

func handleDeleteData(entities.Request) entities.Response {
	return jsonResponse(http.StatusOK, map[string]any{
		"message": "Data deleted successfully",
	})
}

// NotFound is the response for any unrouted (method, path) pair. It carries
// the JSON content type like every other response.
func NotFound() entities.Response {
	return jsonResponse(http.StatusNotFound, map[string]any{"error": "Not Found"})
}

// ErrorResponse builds an error-shaped response for failures that happen
// before routing, such as an undecodable request buffer:
//
//	{"error":"Bad Request","detail":{"message":...,"type":...}}
func ErrorResponse(status int, err error) entities.Response {
	return jsonResponse(status, map[string]any{
		"error":  http.StatusText(status),
		"detail": errors.ToErrorDetail(err),
	})
}

func jsonResponse(status int, body any) entities.Response {
	return entities.Response{
		StatusCode: status,
		Headers:    entities.JSONHeaders(),
		Body:       body,
	}
}
