package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vecsearch/internal/persistence"
	"github.com/fyrsmithlabs/vecsearch/internal/semantic"
	"github.com/fyrsmithlabs/vecsearch/internal/vectorstore"
)

// bindJSON decodes the request body into v. An empty or malformed body is
// a 400.
func bindJSON(c echo.Context, v any) error {
	if c.Request().ContentLength == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "request body is required")
	}
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusUnsupportedMediaType {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vectorstore.ErrEmptyID),
		errors.Is(err, vectorstore.ErrInvalidVector),
		errors.Is(err, semantic.ErrInvalidTopK):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: StatusOK})
}

// handleStats reports store size and snapshot location.
func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.backend.Stats())
}

func (s *Server) handleEmbed(c echo.Context) error {
	var req EmbedRequest
	if err := bindJSON(c, &req); err != nil {
		s.logger.Warn("invalid embed request", zap.Error(err))
		return err
	}

	v, err := s.backend.Embed(c.Request().Context(), req.Text)
	if err != nil {
		s.logger.Error("embed failed", zap.Error(err))
		return echo.NewHTTPError(statusFor(err), err.Error())
	}

	return c.JSON(http.StatusOK, EmbedResponse{Vector: v})
}

func (s *Server) handleIndex(c echo.Context) error {
	var req IndexRequest
	if err := bindJSON(c, &req); err != nil {
		s.logger.Warn("invalid index request", zap.Error(err))
		return err
	}
	if req.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id field is required")
	}

	if err := s.backend.Index(c.Request().Context(), req.ID, req.Text); err != nil {
		s.logger.Error("index failed", zap.String("id", req.ID), zap.Error(err))
		return echo.NewHTTPError(statusFor(err), err.Error())
	}

	return c.JSON(http.StatusOK, IndexResponse{Indexed: 1})
}

func (s *Server) handleIndexBulk(c echo.Context) error {
	var req BulkIndexRequest
	if err := bindJSON(c, &req); err != nil {
		s.logger.Warn("invalid bulk index request", zap.Error(err))
		return err
	}
	for _, item := range req.Items {
		if item.ID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "every item requires an id")
		}
	}

	n, err := s.backend.IndexBulk(c.Request().Context(), req.Items)
	if err != nil {
		s.logger.Error("bulk index failed", zap.Int("batch_size", len(req.Items)), zap.Error(err))
		return echo.NewHTTPError(statusFor(err), err.Error())
	}

	s.logger.Debug("bulk indexed",
		zap.Int("batch_size", len(req.Items)),
		zap.Int("entries", n))

	return c.JSON(http.StatusOK, IndexResponse{Indexed: n})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := bindJSON(c, &req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return err
	}
	if req.TopK != nil && *req.TopK < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "top_k must be non-negative")
	}

	hits, err := s.backend.Search(c.Request().Context(), semantic.SearchRequest{
		Query: req.Query,
		TopK:  req.TopK,
	})
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		return echo.NewHTTPError(statusFor(err), err.Error())
	}

	return c.JSON(http.StatusOK, SearchResponse{Hits: hits})
}

func (s *Server) handleSave(c echo.Context) error {
	if err := s.backend.Save(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, PersistResponse{
			Status: StatusSaveError,
			Error:  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, PersistResponse{Status: StatusSaved})
}

// handleLoad always answers 200; the outcome is carried in the status field.
func (s *Server) handleLoad(c echo.Context) error {
	outcome, err := s.backend.Load(c.Request().Context())
	resp := PersistResponse{Status: outcome.String()}
	if outcome == persistence.OutcomeLoadError && err != nil {
		resp.Error = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}
