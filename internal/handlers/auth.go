package handlers

import (
	"errors"
	"net/http"
	"strings"

	"labdesk/internal/apperr"
	"labdesk/internal/middleware"
	"labdesk/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type principal struct {
	*models.User
	Permissions []string `json:"permissions"`
}

func newPrincipal(u *models.User) principal {
	return principal{User: u, Permissions: u.Role.Permissions().Names()}
}

var errBadCredentials = apperr.New(apperr.KindValidation, "invalid_credentials", errors.New("invalid username or password"))

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		h.fail(c, errBadCredentials)
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).Where("username = ?", req.Username).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(c, err)
			return
		}
		h.log.Warn("Login failed", "username", req.Username, "reason", "unknown user")
		h.fail(c, errBadCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.log.Warn("Login failed", "username", req.Username, "reason", "bad password")
		h.fail(c, errBadCredentials)
		return
	}

	sess := sessions.Default(c)
	sess.Set(middleware.SessionUserID, user.ID)
	sess.Set(middleware.SessionRole, string(user.Role))
	if err := sess.Save(); err != nil {
		h.fail(c, err)
		return
	}

	h.log.Info("User logged in", "user_id", user.ID, "role", user.Role)
	c.JSON(http.StatusOK, newPrincipal(&user))
}

func (h *Handler) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := sess.Save(); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, newPrincipal(middleware.CurrentUser(c)))
}
