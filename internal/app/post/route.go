package post

import "github.com/gin-gonic/gin"

func RegisterRoutes(rg *gin.RouterGroup, handler Handler) {
	posts := rg.Group("/posts")
	{
		posts.POST("", handler.CreatePost)
		posts.GET("", handler.ListThreads)
		posts.GET("/:id", handler.GetThread)
	}
	rg.GET("/stats", handler.GetStats)
}
