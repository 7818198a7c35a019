package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jbergloda1/swha-backend/usecase"
)

func (h *handler) register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	user, err := h.Users.Register(c.Request().Context(), usecase.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *handler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	session, err := h.Users.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, TokenResponse{
		AccessToken: session.Token,
		TokenType:   "bearer",
		ExpiresAt:   session.ExpiresAt,
		User:        session.User,
	})
}

func (h *handler) me(c echo.Context) error {
	user, err := h.Users.Get(c.Request().Context(), claimsFrom(c).UserID)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *handler) updateMe(c echo.Context) error {
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	user, err := h.Users.UpdateProfile(c.Request().Context(), claimsFrom(c).UserID, usecase.ProfileUpdate{
		Email:    req.Email,
		FullName: req.FullName,
		Bio:      req.Bio,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}
