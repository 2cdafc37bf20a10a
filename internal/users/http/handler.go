package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/presensia/presensia-core/internal/api/http/response"
	"github.com/presensia/presensia-core/internal/auth/domain"
	"github.com/presensia/presensia-core/internal/form"
	"github.com/presensia/presensia-core/internal/logging"
	"github.com/presensia/presensia-core/internal/users/service"
)

type Handler struct {
	users   *service.UsersService
	courses service.CourseLookup
	log     logging.Sink
}

func New(users *service.UsersService, courses service.CourseLookup, log logging.Sink) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{users: users, courses: courses, log: log}
}

// Register mounts reads on rg and mutations on admin.
func (h *Handler) Register(rg, admin *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/search", h.search)
	rg.GET("/:id", h.get)

	admin.POST("", h.create)
	admin.PUT("/:id", h.update)
	admin.DELETE("/:id", h.delete)
}

// RegisterCourseView mounts GET /:code/users on a courses group.
func (h *Handler) RegisterCourseView(courses *gin.RouterGroup) {
	courses.GET("/:code/users", h.inCourse)
}

var createRules = form.Rules{
	"email":    form.EmailRules,
	"password": {form.Optional(form.Password)},
	"name":     {form.Optional(form.MinLength(2))},
}

type createReq struct {
	Email    string         `json:"email" binding:"required"`
	Password string         `json:"password"`
	Role     string         `json:"role"`
	Name     string         `json:"name"`
	Fullname string         `json:"fullname"`
	Course   string         `json:"course"`
	Extra    map[string]any `json:"extra"`
}

// list serves the mirror. ?refresh=true reloads it first; ?role= and
// ?enrolled=true filter it.
func (h *Handler) list(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if _, err := h.users.FetchAll(c.Request.Context()); err != nil {
			response.Error(c, err)
			return
		}
	}

	items := h.users.Users()
	switch {
	case c.Query("role") != "":
		items = h.users.FilterByRole(c.Query("role"))
	case c.Query("enrolled") == "true":
		items = h.users.Enrolled(h.courses)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "users": items, "count": len(items)})
}

func (h *Handler) search(c *gin.Context) {
	if email := strings.TrimSpace(c.Query("email")); email != "" {
		response.OK(c, "users", h.users.SearchByEmail(email))
		return
	}
	response.OK(c, "users", h.users.SearchByName(c.Query("name")))
}

func (h *Handler) get(c *gin.Context) {
	u, found, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "user not found"})
		return
	}
	response.OK(c, "user", u)
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	name := req.Name
	if name == "" {
		name = req.Fullname
	}

	f := form.New(form.Values{
		"email":    strings.TrimSpace(req.Email),
		"password": req.Password,
		"name":     name,
	}, createRules, form.WithLogger(h.log))

	var u *domain.UserProfile
	err := f.Submit(c.Request.Context(), func(ctx context.Context, v form.Values) error {
		var err error
		u, err = h.users.Create(ctx, service.NewUser{
			Email:    v["email"].(string),
			Password: req.Password,
			Role:     req.Role,
			Name:     name,
			Course:   req.Course,
			Extra:    req.Extra,
		})
		return err
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "user", u)
}

func (h *Handler) update(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err)
		return
	}
	u, err := h.users.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "user", u)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) inCourse(c *gin.Context) {
	items := h.users.InCourse(c.Param("code"), h.courses)
	c.JSON(http.StatusOK, gin.H{"ok": true, "users": items, "count": len(items)})
}
