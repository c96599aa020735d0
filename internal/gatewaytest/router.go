package gatewaytest

import "github.com/gin-gonic/gin"

func setupRouter(b *Backend) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := &handlers{b: b}

	siwe := router.Group("/api/auth/siwe")
	{
		siwe.GET("/nonce", h.nonce)
		siwe.POST("/verify", h.verify)
	}

	router.POST("/api/users", h.createUser)

	api := router.Group("/api")
	api.Use(authMiddleware(b))
	{
		// /api/users/profile is served by the :id route
		api.GET("/users/:id", h.user)
		api.PUT("/users", h.updateUser)
		api.POST("/users/profile-picture", h.profilePicture)
		api.POST("/users/register-nfc", h.registerNFC)
		api.POST("/friends/scan-nfc", h.scanNFC)
		api.GET("/friends/requests", h.friendRequests)
		api.POST("/friends/accept", h.acceptFriend)
	}

	return router
}
