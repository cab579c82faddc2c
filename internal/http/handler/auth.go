package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"portalapi/internal/auth"
	"portalapi/internal/http/middleware"
)

type credentials struct {
	Username string
	Password string
}

func parseCredentials(c *fiber.Ctx) (credentials, error) {
	fields, err := parseFields(c)
	if err != nil {
		return credentials{}, err
	}
	return credentials{Username: fields.String("username"), Password: fields.String("password")}, nil
}

// Register creates an account.
//
//	@Summary	Register a user
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	400	{object}	errorPayload
//	@Failure	409	{object}	errorPayload
//	@Router		/register [post]
func Register(a auth.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cred, err := parseCredentials(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if _, err := a.Register(c.UserContext(), cred.Username, cred.Password); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "registered"})
	}
}

// Login exchanges credentials for a session token.
//
//	@Summary	Log in
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	401	{object}	errorPayload
//	@Router		/login [post]
func Login(a auth.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cred, err := parseCredentials(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		sess, err := a.Login(c.UserContext(), cred.Username, cred.Password)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "invalid username or password")
			}
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message":  "login successful",
			"token":    sess.Token,
			"username": sess.Identity.Username,
		})
	}
}

// Me returns the identity carried by the bearer token.
func Me() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident, ok := middleware.IdentityFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "no token provided")
		}
		return c.JSON(fiber.Map{"id": ident.UserID, "username": ident.Username})
	}
}
