package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/presensia/presensia-core/internal/app"
	authdomain "github.com/presensia/presensia-core/internal/auth/domain"
	authhttp "github.com/presensia/presensia-core/internal/auth/http"
	"github.com/presensia/presensia-core/internal/auth/middleware"
	courseshttp "github.com/presensia/presensia-core/internal/courses/http"
	usershttp "github.com/presensia/presensia-core/internal/users/http"
)

type V1Deps struct {
	App *app.App
}

// RegisterV1 mounts /api/v1. Everything outside the public auth routes needs
// the session's bearer token; user and course mutations also need the Admin
// role.
func RegisterV1(r *gin.Engine, dep V1Deps) {
	a := dep.App
	api := r.Group("/api/v1")

	guard := middleware.SessionAuth(a.Session)
	adminOnly := middleware.RequireRole(authdomain.RoleAdmin)

	authGroup := api.Group("/auth")
	authhttp.New(a.Session, a.Log).Register(authGroup, authGroup.Group("", guard))

	usersHandler := usershttp.New(a.Users, a.Courses, a.Log)
	usersGroup := api.Group("/users", guard)
	usersHandler.Register(usersGroup, usersGroup.Group("", adminOnly))

	coursesGroup := api.Group("/courses", guard)
	courseshttp.New(a.Courses, a.Log).Register(coursesGroup, coursesGroup.Group("", adminOnly))
	usersHandler.RegisterCourseView(coursesGroup)
}
