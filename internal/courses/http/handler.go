package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/presensia/presensia-core/internal/api/http/response"
	"github.com/presensia/presensia-core/internal/courses/domain"
	"github.com/presensia/presensia-core/internal/courses/service"
	"github.com/presensia/presensia-core/internal/form"
	"github.com/presensia/presensia-core/internal/logging"
)

type Handler struct {
	courses *service.CoursesService
	log     logging.Sink
}

func New(courses *service.CoursesService, log logging.Sink) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{courses: courses, log: log}
}

// Register mounts reads on rg and mutations on admin.
func (h *Handler) Register(rg, admin *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/search", h.search)
	rg.GET("/:code", h.get)

	admin.POST("", h.create)
	admin.PUT("/:code", h.update)
	admin.DELETE("/:code", h.delete)
}

// list serves the mirror. ?refresh=true reloads it first; ?semester=
// filters it.
func (h *Handler) list(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if _, err := h.courses.FetchAll(c.Request.Context()); err != nil {
			response.Error(c, err)
			return
		}
	}
	items := h.courses.Courses()
	if sem := c.Query("semester"); sem != "" {
		items = h.courses.FilterBySemester(sem)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "courses": items, "count": len(items)})
}

func (h *Handler) search(c *gin.Context) {
	if instructor := c.Query("instructor"); instructor != "" {
		response.OK(c, "courses", h.courses.SearchByInstructor(instructor))
		return
	}
	response.OK(c, "courses", h.courses.SearchByName(c.Query("name")))
}

func (h *Handler) get(c *gin.Context) {
	course, found, err := h.courses.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "course not found"})
		return
	}
	response.OK(c, "course", course)
}

var createRules = form.Rules{
	"code":      {form.Required},
	"name":      {form.Required},
	"latitude":  {form.Latitude},
	"longitude": {form.Longitude},
}

func (h *Handler) create(c *gin.Context) {
	var req domain.Course
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	f := form.New(form.Values{
		"code":      req.Code,
		"name":      req.Name,
		"latitude":  req.Latitude,
		"longitude": req.Longitude,
	}, createRules, form.WithLogger(h.log))

	var course domain.Course
	err := f.Submit(c.Request.Context(), func(ctx context.Context, _ form.Values) error {
		var err error
		course, err = h.courses.Create(ctx, req)
		return err
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "course", course)
}

func (h *Handler) update(c *gin.Context) {
	var patch domain.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err)
		return
	}
	course, err := h.courses.Update(c.Request.Context(), c.Param("code"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "course", course)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.courses.Delete(c.Request.Context(), c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
