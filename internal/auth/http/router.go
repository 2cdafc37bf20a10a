package http

import "github.com/gin-gonic/gin"

// Register mounts the public routes on public and the session-guarded ones on
// protected.
func (h *Handler) Register(public, protected *gin.RouterGroup) {
	public.POST("/signin", h.SignIn)
	public.POST("/signup", h.SignUp)
	public.GET("/session", h.GetSession)

	protected.POST("/signout", h.SignOut)
	protected.GET("/profile", h.GetProfile)
	protected.PUT("/profile", h.UpdateProfile)
	protected.PUT("/password", h.ChangePassword)
	protected.PUT("/language", h.SetLanguage)
}
