package routes

import (
	"github.com/gin-gonic/gin"

	"golang-task-scheduler-core/internal/api/handlers"
)

func SetupRoutes(router *gin.Engine, taskHandler *handlers.TaskHandler, deliveryHandler *handlers.DeliveryHandler) {
	// Health check
	router.GET("/health", taskHandler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		tasks := v1.Group("/tasks")
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.GET("/:id/executions", taskHandler.ListTaskExecutions)
		}

		v1.GET("/users/:id/executions", taskHandler.ListUserExecutions)
		v1.GET("/deliveries", deliveryHandler.RecentDeliveries)
	}
}
