package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/existflow/goalpost/internal/api"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
)

// storeError maps store errors onto status codes
func (s *Server) storeError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "goal not found"})
	case errors.Is(err, store.ErrConflict):
		return c.JSON(http.StatusConflict, api.ErrorResponse{Error: "goal was modified concurrently"})
	default:
		s.log.Error("Store call failed", logger.F("op", op), logger.F("owner", ownerID(c)), logger.Err(err))
		return c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: msg})
}

// handleScanByOwner lists the owner's goals
func (s *Server) handleScanByOwner(c echo.Context) error {
	f, _, err := api.ParseFilter(c.QueryParams())
	if err != nil {
		return badRequest(c, "invalid filter: "+err.Error())
	}

	list, err := s.store.ScanByOwner(c.Request().Context(), ownerID(c), f)
	if err != nil {
		return s.storeError(c, "scanByOwner", err)
	}
	if list == nil {
		list = []model.Goal{}
	}
	return c.JSON(http.StatusOK, api.GoalsResponse{Goals: list})
}

// handlePut creates a goal in the owner's collection
func (s *Server) handlePut(c echo.Context) error {
	var g model.Goal
	if err := c.Bind(&g); err != nil {
		return badRequest(c, "invalid goal")
	}

	id, err := s.store.Put(c.Request().Context(), ownerID(c), g)
	if err != nil {
		return s.storeError(c, "put", err)
	}
	return c.JSON(http.StatusCreated, api.IDResponse{ID: id})
}

func (s *Server) handleGet(c echo.Context) error {
	g, err := s.store.Get(c.Request().Context(), ownerID(c), c.Param("id"))
	if err != nil {
		return s.storeError(c, "get", err)
	}
	return c.JSON(http.StatusOK, g)
}

func (s *Server) handlePatch(c echo.Context) error {
	var req api.PatchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid patch: "+err.Error())
	}
	if err := req.Fields.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	err := s.store.Patch(c.Request().Context(), ownerID(c), c.Param("id"), req.Fields, req.Precondition())
	if err != nil {
		return s.storeError(c, "patch", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleScanGlobal lists the public projection across all owners
func (s *Server) handleScanGlobal(c echo.Context) error {
	f, o, err := api.ParseFilter(c.QueryParams())
	if err != nil {
		return badRequest(c, "invalid filter: "+err.Error())
	}
	if o.Field == "" {
		o = store.NewestFirst()
	}

	list, err := s.store.ScanGlobal(c.Request().Context(), f, o)
	if err != nil {
		return s.storeError(c, "scanGlobal", err)
	}
	if list == nil {
		list = []model.Goal{}
	}
	return c.JSON(http.StatusOK, api.GoalsResponse{Goals: list})
}

// handlePutPublic writes a projection. Members may only write their own.
func (s *Server) handlePutPublic(c echo.Context) error {
	var g model.Goal
	if err := c.Bind(&g); err != nil {
		return badRequest(c, "invalid goal")
	}
	g.ID = c.Param("id")
	if g.OwnerID != ownerID(c) {
		return c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "not your goal"})
	}

	ctx := c.Request().Context()
	if _, err := s.store.Get(ctx, g.OwnerID, g.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "not your goal"})
		}
		return s.storeError(c, "putPublic", err)
	}

	if err := s.store.PutPublic(ctx, g); err != nil {
		return s.storeError(c, "putPublic", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handlePatchPublic updates a projection whose goal the caller owns
func (s *Server) handlePatchPublic(c echo.Context) error {
	var req api.PatchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid patch: "+err.Error())
	}
	if err := req.Fields.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.store.Get(ctx, ownerID(c), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "not your goal"})
		}
		return s.storeError(c, "patchPublic", err)
	}

	if err := s.store.PatchPublic(ctx, id, req.Fields); err != nil {
		return s.storeError(c, "patchPublic", err)
	}
	return c.NoContent(http.StatusNoContent)
}
