package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fitnow/fitnow-api/internal/logging"
	"github.com/fitnow/fitnow-api/internal/model"
	"github.com/fitnow/fitnow-api/internal/repository"
)

// Catalog is the read side used by the public browse endpoints.
type Catalog interface {
	GetDetail(ctx context.Context, id uint64) (*model.ActivityDetail, error)
	ListSessions(ctx context.Context, activityID uint64) ([]model.Session, error)
	ListProviderSports(ctx context.Context, providerID uint64) ([]model.Sport, error)
	Search(ctx context.Context, q repository.ActivitySearchQuery) ([]repository.ActivityRow, error)
}

// BrowseHandler serves unauthenticated catalogue reads.  Responses are
// cached for a few seconds by the router, so seats_left may lag slightly.
type BrowseHandler struct {
	Catalog Catalog
}

// NewBrowseHandler panics on a nil catalog.
func NewBrowseHandler(catalog Catalog) *BrowseHandler {
	if catalog == nil {
		panic("nil catalog passed to NewBrowseHandler")
	}
	return &BrowseHandler{Catalog: catalog}
}

// SearchActivities handles GET /api/activities.
//
// Query: difficulty, modality, kind, provider_id, sport_id, min_price,
// max_price, include_sports, limit, offset.
func (h *BrowseHandler) SearchActivities(c echo.Context) error {
	q := repository.ActivitySearchQuery{
		Difficulty: c.QueryParam("difficulty"),
		Modality:   c.QueryParam("modality"),
		Kind:       c.QueryParam("kind"),
		ProviderID: queryUint(c, "provider_id"),
		SportID:    queryUint(c, "sport_id"),
		MinPrice:   queryFloat(c, "min_price"),
		MaxPrice:   queryFloat(c, "max_price"),
	}
	q.IncludeSports, _ = strconv.ParseBool(c.QueryParam("include_sports"))
	q.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	q.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	q.Normalize()

	items, err := h.Catalog.Search(c.Request().Context(), q)
	if err != nil {
		return serverError(c, err)
	}
	if items == nil {
		items = []repository.ActivityRow{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "limit": q.Limit, "offset": q.Offset})
}

// GetActivity handles GET /api/activities/:id.
func (h *BrowseHandler) GetActivity(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid activity id"})
	}
	detail, err := h.Catalog.GetDetail(c.Request().Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Not found"})
	}
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// ListSessions handles GET /api/activities/:id/sessions.  An activity
// without sessions yields an empty list.
func (h *BrowseHandler) ListSessions(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid activity id"})
	}
	sessions, err := h.Catalog.ListSessions(c.Request().Context(), id)
	if err != nil {
		return serverError(c, err)
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": sessions})
}

// ListProviderSports handles GET /api/providers/:id/sports.
func (h *BrowseHandler) ListProviderSports(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	sports, err := h.Catalog.ListProviderSports(c.Request().Context(), id)
	if err != nil {
		return serverError(c, err)
	}
	if sports == nil {
		sports = []model.Sport{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": sports})
}

func serverError(c echo.Context, err error) error {
	logging.Error().Err(err).Str("route", c.Path()).Msg("catalog query failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
}
