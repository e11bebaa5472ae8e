package authtest

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-client"
	"golang.org/x/crypto/bcrypt"
)

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordPayload struct {
	Email       string `json:"email"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) routes() {
	s.app.Use(s.record)

	api := s.app.Group("/api")
	api.Post("/login", s.login)
	api.Post("/register", s.register)
	api.Post("/refresh", s.refresh)
	api.Post("/logout", s.logout)

	api.Get("/status", s.protected, s.status)
	api.Put("/user/password", s.protected, s.changePassword)
	api.Get("/payments", s.protected, s.listPayments)
	api.Get("/dashboard/summary", s.protected, s.dashboardSummary)
	api.Get("/dashboard/chart", s.protected, s.dashboardChart)
}

func (s *Server) record(c *fiber.Ctx) error {
	req := Request{
		Method:        c.Method(),
		Path:          c.Path(),
		Authorization: c.Get(fiber.HeaderAuthorization),
		RequestID:     c.Get(authclient.HeaderRequestID),
		Body:          string(c.Body()),
		Cookies:       map[string]string{},
	}
	c.Request().Header.VisitAllCookie(func(key, value []byte) {
		req.Cookies[string(key)] = string(value)
	})

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	return c.Next()
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"message": msg,
		"success": status < 300,
	})
}

func (s *Server) login(c *fiber.Ctx) error {
	var payload credentialsPayload
	if err := c.BodyParser(&payload); err != nil {
		return message(c, fiber.StatusBadRequest, "invalid request body")
	}

	if !s.CheckPassword(payload.Email, payload.Password) {
		return message(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	s.mu.Lock()
	accessEpoch, refreshEpoch := s.accessEpoch, s.refreshEpoch
	override := s.loginResponse
	s.mu.Unlock()

	if override != nil {
		return c.Status(fiber.StatusOK).JSON(*override)
	}

	access, err := s.sign(payload.Email, AccessCookie, accessEpoch, accessTTL)
	if err != nil {
		return message(c, fiber.StatusInternalServerError, "could not sign token")
	}

	if s.mode == authclient.TransportToken {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"token":   access,
			"message": "Login successful",
			"success": true,
		})
	}

	refresh, err := s.sign(payload.Email, RefreshCookie, refreshEpoch, refreshTTL)
	if err != nil {
		return message(c, fiber.StatusInternalServerError, "could not sign token")
	}

	s.setAccessCookie(c, access)
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    refresh,
		Path:     "/api/refresh",
		Expires:  time.Now().Add(refreshTTL),
		HTTPOnly: true,
	})

	return message(c, fiber.StatusOK, "Login successful")
}

func (s *Server) setAccessCookie(c *fiber.Ctx, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     AccessCookie,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(accessTTL),
		HTTPOnly: true,
	})
}

func (s *Server) register(c *fiber.Ctx) error {
	var payload credentialsPayload
	if err := c.BodyParser(&payload); err != nil {
		return message(c, fiber.StatusBadRequest, "invalid request body")
	}

	if payload.Email == "" || payload.Password == "" {
		return message(c, fiber.StatusBadRequest, "email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.MinCost)
	if err != nil {
		return message(c, fiber.StatusInternalServerError, "could not hash password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[payload.Email]; exists {
		return message(c, fiber.StatusConflict, "user already exists")
	}
	s.users[payload.Email] = hash

	return message(c, fiber.StatusCreated, "User registered successfully")
}

func (s *Server) refresh(c *fiber.Ctx) error {
	subject, ok := s.verify(c.Cookies(RefreshCookie), RefreshCookie)
	if !ok {
		return message(c, fiber.StatusUnauthorized, "invalid refresh token")
	}

	s.mu.Lock()
	epoch := s.accessEpoch
	s.mu.Unlock()

	access, err := s.sign(subject, AccessCookie, epoch, accessTTL)
	if err != nil {
		return message(c, fiber.StatusInternalServerError, "could not sign token")
	}

	s.setAccessCookie(c, access)
	return message(c, fiber.StatusOK, "Token refreshed")
}

func (s *Server) logout(c *fiber.Ctx) error {
	s.mu.Lock()
	status := s.logoutStatus
	s.mu.Unlock()

	if status >= 300 {
		return message(c, status, "logout failed")
	}

	c.Cookie(&fiber.Cookie{Name: AccessCookie, Path: "/", MaxAge: -1, Expires: time.Unix(0, 0)})
	c.Cookie(&fiber.Cookie{Name: RefreshCookie, Path: "/api/refresh", MaxAge: -1, Expires: time.Unix(0, 0)})

	return message(c, fiber.StatusOK, "Logged out")
}

func (s *Server) protected(c *fiber.Ctx) error {
	raw, err := extractToken(c, s.extractors)
	if err != nil {
		return message(c, fiber.StatusUnauthorized, "unauthorized")
	}

	subject, ok := s.verify(raw, AccessCookie)
	if !ok {
		return message(c, fiber.StatusUnauthorized, "unauthorized")
	}

	c.Locals("subject", subject)
	return c.Next()
}

func (s *Server) status(c *fiber.Ctx) error {
	return message(c, fiber.StatusOK, "Authenticated as "+c.Locals("subject").(string))
}

func (s *Server) changePassword(c *fiber.Ctx) error {
	var payload passwordPayload
	if err := c.BodyParser(&payload); err != nil {
		return message(c, fiber.StatusBadRequest, "invalid request body")
	}

	subject := c.Locals("subject").(string)
	if payload.Email != subject {
		return message(c, fiber.StatusForbidden, "cannot change another user's password")
	}

	if !s.CheckPassword(subject, payload.OldPassword) {
		return message(c, fiber.StatusUnauthorized, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.MinCost)
	if err != nil {
		return message(c, fiber.StatusInternalServerError, "could not hash password")
	}

	s.mu.Lock()
	s.users[subject] = hash
	s.mu.Unlock()

	return message(c, fiber.StatusOK, "Password updated successfully")
}

func (s *Server) listPayments(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(s.payments)
}

func (s *Server) dashboardSummary(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(s.summary)
}

func (s *Server) dashboardChart(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(s.chart)
}
