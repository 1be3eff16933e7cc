package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fitnow/fitnow-api/internal/middleware"
)

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the caller set by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	if uid, ok := middleware.UserID(c); ok {
		return uid, nil
	}
	return 0, errNoUser
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

// queryUint parses an optional numeric query parameter; absent or
// malformed values yield zero.
func queryUint(c echo.Context, name string) uint64 {
	n, _ := strconv.ParseUint(c.QueryParam(name), 10, 64)
	return n
}

func queryFloat(c echo.Context, name string) *float64 {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &f
}
