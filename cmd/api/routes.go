package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"crm-platform/internal/httpapi"
	"crm-platform/internal/telephony"
	"crm-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	Webhooks telephony.WebhookHandler
	API      httpapi.Handlers
	AuthMW   gin.HandlerFunc
	Health   gin.HandlerFunc
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", deps.Health)

	// Provider webhooks (public; authenticated by Twilio request signatures).
	r.POST("/webhooks/twilio/voice", deps.Webhooks.HandleVoice)
	r.POST("/webhooks/twilio/recording", deps.Webhooks.HandleRecording)

	// Token issuance (skeleton login, no credential store yet).
	r.POST("/auth/login", deps.API.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(deps.AuthMW)
	{
		customers := v1.Group("/customers")
		{
			customers.GET("/:customer_id", deps.API.GetCustomer)
			customers.DELETE("/:customer_id", deps.API.DeleteCustomer)
		}

		v1.POST("/sync/emails", deps.API.TriggerEmailSync)

		v1.GET("/reports/activity", deps.API.ActivitySummary)

		v1.PATCH("/follow-ups/:follow_up_id", deps.API.UpdateFollowUpStatus)
	}
}

func healthProbe(db *sql.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
