package http

import (
	"github.com/presensia/presensia-core/internal/auth/service"
	"github.com/presensia/presensia-core/internal/logging"
)

type Handler struct {
	session *service.SessionService
	log     logging.Sink
}

func New(session *service.SessionService, log logging.Sink) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		session: session,
		log:     log,
	}
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signUpRequest struct {
	Email    string         `json:"email" binding:"required"`
	Password string         `json:"password" binding:"required"`
	Role     string         `json:"role"`
	Name     string         `json:"name"`
	Course   string         `json:"course"`
	Plan     string         `json:"plan"`
	Extra    map[string]any `json:"extra"`
}

// fields flattens the request into the additional profile attributes.
func (r signUpRequest) fields() map[string]any {
	out := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		out[k] = v
	}
	if r.Name != "" {
		out["name"] = r.Name
	}
	if r.Course != "" {
		out["course"] = r.Course
	}
	if r.Plan != "" {
		out["plan"] = r.Plan
	}
	return out
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type languageRequest struct {
	Language string `json:"language" binding:"required"`
}
