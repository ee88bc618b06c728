// Package api exposes the reconstruction engine over HTTP: submit a
// measurement/mask pair, fetch past results and inspect the loaded
// model.
package api

import (
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/Mengjie-s/CA2UN/internal/logger"
	"github.com/Mengjie-s/CA2UN/internal/model"
	"github.com/Mengjie-s/CA2UN/internal/version"
)

type Server struct {
	model *model.Model
	store *ReconstructionStore
	log   logger.Logger
	clock func() time.Time
}

func NewServer(m *model.Model, store *ReconstructionStore, log logger.Logger) *Server {
	if store == nil {
		store = NewReconstructionStore(0)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		model: m,
		store: store,
		log:   log,
		clock: time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/reconstructions", s.handleCreateReconstruction)
	e.GET("/v1/reconstructions/:id", s.handleGetReconstruction)
	e.GET("/v1/model", s.handleModelInfo)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleCreateReconstruction(c *echo.Context) error {
	if s.model == nil {
		return writeServerError(c, "no model loaded")
	}
	req, err := decodeJSON[ReconstructionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	y, err := req.Measurement.toTensor("measurement")
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	phi, err := req.Mask.toTensor("mask")
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	start := s.clock()
	stages, err := s.model.ReconstructStages(y, phi)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	elapsed := s.clock().Sub(start)

	resp := ReconstructionResponse{
		ID:         newReconstructionID(),
		Object:     "reconstruction",
		CreatedAt:  start.Unix(),
		Status:     "completed",
		DurationMS: elapsed.Milliseconds(),
		Cube:       payloadFromTensor(stages[len(stages)-1]),
	}
	if req.ReturnStages {
		resp.Stages = make([]TensorPayload, len(stages))
		for i, st := range stages {
			resp.Stages[i] = payloadFromTensor(st)
		}
	}
	s.store.Save(resp)
	s.log.Info("reconstruction completed",
		"id", resp.ID,
		"batch", y.N,
		"duration", elapsed)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetReconstruction(c *echo.Context) error {
	id := c.Param("id")
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "no reconstruction with id "+id)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleModelInfo(c *echo.Context) error {
	if s.model == nil {
		return writeServerError(c, "no model loaded")
	}
	cfg := s.model.Config()
	return c.JSON(http.StatusOK, ModelInfo{
		Bands:     cfg.Bands,
		Step:      cfg.Step,
		Dim:       cfg.Dim,
		Stages:    cfg.Stage,
		Sharing:   string(cfg.Sharing),
		NumParams: s.model.NumParams(),
		Version:   version.String(),
	})
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeServerError(c *echo.Context, msg string) error {
	return writeError(c, http.StatusInternalServerError, "server_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": ErrorBody{Message: msg, Type: errType},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
