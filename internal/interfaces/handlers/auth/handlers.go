package auth

import (
	"errors"

	authsvc "webcarros-backend/internal/application/auth"
	"webcarros-backend/internal/domain"
	"webcarros-backend/internal/middleware"
	"webcarros-backend/internal/pkg/response"
	"webcarros-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	Service *authsvc.Service
	Config  middleware.SessionConfig
}

// Register POST /api/v1/auth/register: create the account and sign it in.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var in authsvc.SignUpInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	user, err := h.Service.SignUp(c.UserContext(), in)
	if err != nil {
		var fe validation.FieldErrors
		switch {
		case errors.As(err, &fe):
			return response.Invalid(c, fe)
		case errors.Is(err, authsvc.ErrEmailInUse):
			return response.Error(c, err.Error(), fiber.StatusConflict, nil)
		default:
			log.Error().Err(err).Msg("auth/register: sign up failed")
			return response.Internal(c)
		}
	}
	if err := h.startSession(c, user); err != nil {
		return response.Internal(c)
	}
	return response.SuccessCreated(c, "Account created", fiber.Map{"user": authsvc.NewSessionUser(user)}, nil)
}

// Login POST /api/v1/auth/login: authenticate, replace any current session, set cookie.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var in authsvc.LoginInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, authsvc.ErrEmailPasswordRequired.Error(), fiber.StatusBadRequest, nil)
	}

	user, err := h.Service.SignIn(c.UserContext(), in)
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrEmailPasswordRequired):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case errors.Is(err, authsvc.ErrInvalidEmail), errors.Is(err, authsvc.ErrIncorrectPassword):
			return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
		default:
			log.Error().Err(err).Msg("auth/login: sign in failed")
			return response.Internal(c)
		}
	}
	if err := h.startSession(c, user); err != nil {
		return response.Internal(c)
	}
	return response.Success(c, "Login successful", fiber.Map{"user": authsvc.NewSessionUser(user)}, nil)
}

func (h *Handlers) startSession(c *fiber.Ctx, user *domain.User) error {
	h.endSession(c)

	sessionID := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, authsvc.NewSessionUser(user))
	if err := h.Service.TrackSession(c.UserContext(), user.UID, sessionID); err != nil {
		log.Error().Err(err).Str("uid", user.UID).Msg("auth: session index failed")
		return err
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sessionID
	c.Cookie(&cookie)
	return nil
}

// Me GET /api/v1/auth/me: current session user or 401.
func (h *Handlers) Me(c *fiber.Ctx) error {
	user, err := authsvc.VerifyUser(middleware.GetUser(c))
	if err != nil {
		if middleware.GetSessionID(c) == "" {
			log.Debug().Bool("cookie_present", c.Cookies(middleware.SessionCookieName) != "").
				Msg("auth/me: no session")
		}
		return response.Error(c, "Not authenticated", fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": user}, nil)
}

// Logout DELETE /api/v1/auth/logout: drop the session and clear the cookie. Idempotent.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	h.endSession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out successfully", nil, nil)
}

func (h *Handlers) endSession(c *fiber.Ctx) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		return
	}
	uid := ""
	if u, err := authsvc.VerifyUser(middleware.GetUser(c)); err == nil {
		uid = u.UID
	}
	if err := h.Service.ForgetSession(c.UserContext(), uid, sessionID); err != nil {
		log.Warn().Err(err).Msg("auth: forget session failed")
	}
	middleware.DestroySession(c)
}

// Profile PATCH /api/v1/auth/profile: rename the signed-in user.
func (h *Handlers) Profile(c *fiber.Ctx) error {
	current := middleware.CurrentUser(c)
	if current == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var in authsvc.ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	user, err := h.Service.UpdateProfile(c.UserContext(), current.UID, in)
	if err != nil {
		var fe validation.FieldErrors
		switch {
		case errors.As(err, &fe):
			return response.Invalid(c, fe)
		case errors.Is(err, authsvc.ErrUserNotFound):
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		default:
			return response.Internal(c)
		}
	}
	// the session document was rewritten in Redis; keep this request's copy in sync
	middleware.SetSessionUser(c, authsvc.NewSessionUser(user))
	return response.Success(c, "Profile updated", fiber.Map{"user": authsvc.NewSessionUser(user)}, nil)
}
