package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fitnow/fitnow-api/internal/logging"
	"github.com/fitnow/fitnow-api/internal/model"
	"github.com/fitnow/fitnow-api/internal/reservation"
)

// ReservationService is the part of reservation.Service the HTTP layer uses.
type ReservationService interface {
	ReserveActivity(ctx context.Context, userID, activityID uint64) (*model.Reservation, error)
	ReserveSession(ctx context.Context, userID, sessionID uint64) (*model.Reservation, error)
	CancelReservation(ctx context.Context, userID, reservationID uint64) error
	CancelSession(ctx context.Context, userID, sessionID uint64) error
	ListForUser(ctx context.Context, userID uint64, w model.Window) ([]model.ReservationItem, error)
}

// ReservationHandler serves the enrollment and session booking endpoints.
// Every route sits behind JWTAuth.
type ReservationHandler struct {
	Service ReservationService
}

// NewReservationHandler panics on a nil service.
func NewReservationHandler(svc ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Service: svc}
}

type enrollmentRequest struct {
	ActivityID numericID `json:"activity_id" validate:"required"`
}

// numericID accepts a JSON number or a string holding one; clients send
// both forms.  null and "" decode to zero.
type numericID uint64

func (n *numericID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*n = 0
		return nil
	}
	raw = strings.TrimSpace(strings.Trim(raw, `"`))
	if raw == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", raw)
	}
	*n = numericID(v)
	return nil
}

// CreateEnrollment handles POST /api/enrollments with {"activity_id": n}.
// Returns 201 on success, 404 for an unknown activity and 409 when the
// user is already enrolled or no seats are left.
func (h *ReservationHandler) CreateEnrollment(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req enrollmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "activity_id is required"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	r, err := h.Service.ReserveActivity(c.Request().Context(), userID, uint64(req.ActivityID))
	if err != nil {
		return reservationError(c, err, "Activity not found")
	}
	return c.JSON(http.StatusCreated, echo.Map{"status": "ok", "id": r.ID})
}

// ListMine handles GET /api/enrollments/mine?when=upcoming|past|all.
// Unknown values of when are treated as upcoming.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Service.ListForUser(c.Request().Context(), userID, model.ParseWindow(c.QueryParam("when")))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CancelEnrollment handles DELETE /api/enrollments/:id.  Only the owner
// can cancel; any other id is reported as not found.
func (h *ReservationHandler) CancelEnrollment(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid enrollment id"})
	}
	if err := h.Service.CancelReservation(c.Request().Context(), userID, id); err != nil {
		return reservationError(c, err, "Enrollment not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// BookSession handles POST /api/sessions/:sid/book.
func (h *ReservationHandler) BookSession(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sid, err := parseID(c, "sid")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	r, err := h.Service.ReserveSession(c.Request().Context(), userID, sid)
	if err != nil {
		return reservationError(c, err, "Session not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "id": r.ID})
}

// CancelSessionBooking handles DELETE /api/sessions/:sid/book.
func (h *ReservationHandler) CancelSessionBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sid, err := parseID(c, "sid")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	if err := h.Service.CancelSession(c.Request().Context(), userID, sid); err != nil {
		return reservationError(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// conflictMessages are the client-facing texts of the policy rejections.
var conflictMessages = map[error]string{
	reservation.ErrDuplicateReservation: "Already enrolled",
	reservation.ErrCapacityExhausted:    "No seats left",
	reservation.ErrMembershipRequired:   "Membership required",
	reservation.ErrMembershipExpired:    "Membership not valid for this date",
	reservation.ErrWeeklyLimitReached:   "Weekly limit reached",
}

// reservationError maps coordinator errors to responses.  notFound is the
// message used for 404s.  Internal errors were already logged with their
// cause by the service; the client only sees "Server error".
func reservationError(c echo.Context, err error, notFound string) error {
	switch {
	case errors.Is(err, reservation.ErrResourceNotFound), errors.Is(err, reservation.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFound})
	case reservation.IsConflict(err):
		for sentinel, msg := range conflictMessages {
			if errors.Is(err, sentinel) {
				return c.JSON(http.StatusConflict, echo.Map{"error": msg})
			}
		}
	case errors.Is(err, context.Canceled):
		logging.Debug().Err(err).Str("route", c.Path()).Msg("client went away")
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
}
