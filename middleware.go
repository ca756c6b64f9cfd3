package main

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/tr4cks/atx-power/modules"

	"github.com/gin-gonic/gin"
)

// ServerStateMiddleware stores the module state under "state" and the power
// LED under "power".
func ServerStateMiddleware(module modules.Module) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := module.State()

		c.Set("state", state)
		c.Set("power", state.Leds.Power)

		c.Next()
	}
}

func ConditionalMiddleware(predicate func(*gin.Context) bool, middleware gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if predicate(c) {
			middleware(c)
		} else {
			c.Next()
		}
	}
}

// LoggerMiddleware logs every request once it has been served.
func LoggerMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Info()
		if len(c.Errors) > 0 {
			event = logger.Error().Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request served")
	}
}
