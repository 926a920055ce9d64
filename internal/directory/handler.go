package directory

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes directory endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a directory HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Users serves GET /users. With a login query parameter it performs a
// credential lookup and returns zero or one match; without it, it lists all
// users.
func (h *Handler) Users(c *fiber.Ctx) error {
	args := c.Context().QueryArgs()
	if args.Has("login") {
		matches, err := h.service.Lookup(c.UserContext(), Credentials{Login: c.Query("login"), Password: c.Query("pass")})
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(toPublic(matches))
	}

	users, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toPublic(users))
}

// Register serves POST /users.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Register(c.UserContext(), req)
	switch {
	case errors.Is(err, ErrUserExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case err != nil:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(user.Public())
}

func toPublic(users []User) []PublicUser {
	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}
