package route

import (
	"menudash/controller"
	"menudash/utils"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func FoodRoutes(router *gin.Engine) {
	foods := router.Group("/foods")
	{
		foods.GET("", controller.ListFoods)
		foods.POST("", controller.AddFood)
		foods.POST("/import", controller.BulkAddFood)
		foods.GET("/:id", controller.GetFoodByID)
		foods.PUT("/:id", controller.UpdateFood)
		foods.DELETE("/:id", controller.DeleteFood)
	}
	router.GET("/health", controller.Health)
}

// NewRouter builds the foods API engine. Middleware must be installed before
// the routes, so CORS is configured here from the dashboard origins.
func NewRouter(log *zap.Logger, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		utils.RequestID(),
		utils.RequestLogger(log),
		cors.New(cors.Config{
			AllowOrigins: allowedOrigins,
			AllowMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
			},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", utils.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)
	FoodRoutes(router)
	return router
}
