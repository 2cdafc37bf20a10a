package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/presensia/presensia-core/internal/api/http/response"
	"github.com/presensia/presensia-core/internal/apperr"
	"github.com/presensia/presensia-core/internal/auth/domain"
	"github.com/presensia/presensia-core/internal/logging"
)

func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	user, verified, err := h.session.SignInVerified(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !verified {
		h.log.Warn(logging.TagSession, "sign in answered from cache, token withheld", "email", req.Email)
		response.Error(c, h.session.Localizer().New(apperr.KindAuthFailed, domain.ErrCredentialsUnverified))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user, "token": h.session.Token()})
}

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	user, err := h.session.SignUp(c.Request.Context(), req.Email, req.Password, req.Role, req.fields())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "user": user, "token": h.session.Token()})
}

func (h *Handler) SignOut(c *gin.Context) {
	if err := h.session.SignOut(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetSession reports the session state without requiring a token.
func (h *Handler) GetSession(c *gin.Context) {
	body := gin.H{
		"ok":            true,
		"state":         h.session.State().String(),
		"authenticated": h.session.IsAuthenticated(),
		"plan":          h.session.CurrentPlan(c.Request.Context()),
	}
	if user := h.session.Current(); user != nil {
		body["user"] = user
	}
	if err := h.session.LastError(); err != nil {
		body["last_error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) GetProfile(c *gin.Context) {
	user := h.session.Current()
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return
	}
	response.OK(c, "user", user)
}

// UpdateProfile merges the JSON object body into the profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err)
		return
	}

	user, err := h.session.UpdateProfile(c.Request.Context(), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "user", user)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	if err := h.session.ChangePassword(c.Request.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "token": h.session.Token()})
}

func (h *Handler) SetLanguage(c *gin.Context) {
	var req languageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	if err := h.session.SetLanguage(c.Request.Context(), req.Language); err != nil {
		h.log.Warn(logging.TagHTTP, "language not saved", logging.Err(err))
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
