package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/fitnow/fitnow-api/internal/handler"
	"github.com/fitnow/fitnow-api/internal/model"
	"github.com/fitnow/fitnow-api/internal/repository"
)

type stubReservations struct{}

func (stubReservations) ReserveActivity(context.Context, uint64, uint64) (*model.Reservation, error) {
	return &model.Reservation{ID: 1}, nil
}

func (stubReservations) ReserveSession(context.Context, uint64, uint64) (*model.Reservation, error) {
	return &model.Reservation{ID: 1}, nil
}

func (stubReservations) CancelReservation(context.Context, uint64, uint64) error { return nil }
func (stubReservations) CancelSession(context.Context, uint64, uint64) error     { return nil }

func (stubReservations) ListForUser(context.Context, uint64, model.Window) ([]model.ReservationItem, error) {
	return nil, nil
}

type stubCatalog struct{}

func (stubCatalog) GetDetail(_ context.Context, id uint64) (*model.ActivityDetail, error) {
	return &model.ActivityDetail{Activity: model.Activity{ID: id}}, nil
}

func (stubCatalog) ListSessions(context.Context, uint64) ([]model.Session, error) { return nil, nil }
func (stubCatalog) ListProviderSports(context.Context, uint64) ([]model.Sport, error) {
	return nil, nil
}

func (stubCatalog) Search(context.Context, repository.ActivitySearchQuery) ([]repository.ActivityRow, error) {
	return nil, nil
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	Register(e, Deps{
		JWTSecret:    "secret",
		Reservations: handler.NewReservationHandler(stubReservations{}),
		Browse:       handler.NewBrowseHandler(stubCatalog{}),
	})
	return e
}

func get(e *echo.Echo, method, target string) int {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec.Code
}

func TestUnknownAPIPathIsNotFound(t *testing.T) {
	e := newTestEcho()
	assert.Equal(t, http.StatusNotFound, get(e, http.MethodGet, "/api/nope"))
	assert.Equal(t, http.StatusNotFound, get(e, http.MethodPost, "/api/unknown/thing"))
}

func TestRouteProtection(t *testing.T) {
	e := newTestEcho()
	assert.Equal(t, http.StatusOK, get(e, http.MethodGet, "/api/activities"))
	assert.Equal(t, http.StatusOK, get(e, http.MethodGet, "/api/activities/3"))
	assert.Equal(t, http.StatusOK, get(e, http.MethodGet, "/api/health"))

	assert.Equal(t, http.StatusUnauthorized, get(e, http.MethodGet, "/api/enrollments/mine"))
	assert.Equal(t, http.StatusUnauthorized, get(e, http.MethodPost, "/api/sessions/4/book"))
	assert.Equal(t, http.StatusUnauthorized, get(e, http.MethodDelete, "/api/enrollments/4"))
}
