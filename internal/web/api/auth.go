package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"liteassistant/auth"
	"liteassistant/internal/web/middleware"
	"liteassistant/internal/web/models"
)

func RegisterAuthRoutes(router *gin.Engine, authModule *auth.AuthModule, middlewareManager *middleware.MiddlewareManager) {
	r := router.Group("/api/auth")
	{
		r.POST("/login", func(c *gin.Context) {
			var loginRequest models.LoginRequest
			if err := c.ShouldBind(&loginRequest); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := authModule.LoginWithJWT(c, loginRequest.Username, loginRequest.Password)
			if err != nil {
				c.Header("WWW-Authenticate", "Bearer")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect username or password"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
		})
	}

	protected := router.Group("/api/auth")
	protected.Use(middlewareManager.RequireAuth())
	{
		protected.GET("/me", func(c *gin.Context) {
			user, err := authModule.GetUser(c, c.GetInt64(middleware.UserIDKey))
			if errors.Is(err, auth.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			if err != nil {
				fail(c, err, "User not found")
				return
			}
			c.JSON(http.StatusOK, user)
		})

		protected.PUT("/password", func(c *gin.Context) {
			var req models.ChangePasswordRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
			if err := authModule.ChangePassword(c, c.GetInt64(middleware.UserIDKey), req.OldPassword, req.NewPassword); err != nil {
				badRequest(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "password_changed"})
		})

		protected.POST("/logout", func(c *gin.Context) {
			if err := authModule.LogoutJWT(c, middleware.Claims(c)); err != nil {
				fail(c, err, "")
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
		})
	}
}
