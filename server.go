package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tr4cks/atx-power/modules"
	"github.com/tr4cks/atx-power/mqtt"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// runServer prepares the module and serves the HTTP API, plus the optional
// Discord bot and MQTT publisher, until ctx is done or one of them fails.
func runServer(ctx context.Context, config *Config, module modules.Module, logger zerolog.Logger) error {
	err := module.Prepare()
	if err != nil {
		return fmt.Errorf("error during module preparation: %w", err)
	}
	defer module.Cleanup()

	var bot *DiscordBot
	if config.Discord != nil {
		bot, err = NewDiscordBot(config.Discord, module, logger)
		if err != nil {
			return fmt.Errorf("error creating the Discord bot: %w", err)
		}
		err = bot.Start()
		if err != nil {
			return fmt.Errorf("error starting the Discord bot: %w", err)
		}
	}

	var publisher *mqtt.RealPublisher
	if config.Mqtt != nil {
		publisher, err = mqtt.NewRealPublisher(config.Mqtt)
		if err != nil {
			if bot != nil {
				bot.Stop()
			}
			return fmt.Errorf("error connecting to the MQTT broker: %w", err)
		}
		defer publisher.Close()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return module.Systask(ctx)
	})

	httpLogger := logger.With().Str("scope", "http").Logger()
	server := &http.Server{
		Addr:    config.Http.Addr,
		Handler: newRouter(config, module, httpLogger),
		// Streams end with the server context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	g.Go(func() error {
		httpLogger.Info().Str("addr", config.Http.Addr).Msg("HTTP server listening")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if config.Http.Zeroconf {
		mdns, err := registerZeroconf(config.Http.Addr)
		if err != nil {
			httpLogger.Warn().Err(err).Msg("Failed to advertise the HTTP server")
		} else {
			defer mdns.Shutdown()
		}
	}

	if bot != nil {
		g.Go(func() error {
			<-ctx.Done()
			bot.Stop()
			return nil
		})
	}

	if publisher != nil {
		mqttLogger := logger.With().Str("scope", "mqtt").Logger()
		g.Go(func() error {
			return mqtt.Run(ctx, module, publisher, mqttLogger)
		})
	}

	return g.Wait()
}

func newRouter(config *Config, module modules.Module, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())
	router.SetTrustedProxies(nil)

	basicAuth := gin.BasicAuth(gin.Accounts{config.Username: config.Password})
	h := &handlers{module: module, logger: logger}

	api := router.Group("/api")
	{
		api.GET("/state", ServerStateMiddleware(module), func(c *gin.Context) {
			c.JSON(http.StatusOK, c.MustGet("state"))
		})
		api.GET("/state/stream", h.streamStates)

		// Switching the server off needs credentials, switching it on does not.
		api.POST("/toggle", ServerStateMiddleware(module),
			ConditionalMiddleware(func(c *gin.Context) bool { return c.GetBool("power") }, basicAuth),
			func(c *gin.Context) {
				if c.GetBool("power") {
					h.operation(c, module.PowerOff, "Server shutdown error")
				} else {
					h.operation(c, module.PowerOn, "Server power-up error")
				}
			})

		power := api.Group("/power")
		power.POST("/on", func(c *gin.Context) {
			h.operation(c, module.PowerOn, "Server power-up error")
		})
		power.POST("/off", basicAuth, func(c *gin.Context) {
			h.operation(c, module.PowerOff, "Server shutdown error")
		})
		power.POST("/off_hard", basicAuth, func(c *gin.Context) {
			h.operation(c, module.PowerOffHard, "Server hard shutdown error")
		})
		power.POST("/reset_hard", basicAuth, func(c *gin.Context) {
			h.operation(c, module.PowerResetHard, "Server reset error")
		})

		api.POST("/click/:button", basicAuth, h.click)
	}

	return router
}

type handlers struct {
	module modules.Module
	logger zerolog.Logger
}

func (h *handlers) operation(c *gin.Context, op func(context.Context, bool) error, errMsg string) {
	wait, err := strconv.ParseBool(c.DefaultQuery("wait", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "ko",
			"error":  "invalid wait parameter",
		})
		return
	}

	err = op(c.Request.Context(), wait)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, modules.ErrBusy):
			status = http.StatusConflict
		case errors.Is(err, modules.ErrNotSupported):
			status = http.StatusNotImplemented
		default:
			h.logger.Error().Err(err).Msg(errMsg)
		}
		c.Error(err)
		c.JSON(status, gin.H{
			"status": "ko",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (h *handlers) click(c *gin.Context) {
	button := c.Param("button")
	click, ok := clickButtons[button]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "ko",
			"error":  fmt.Sprintf("unknown button %q", button),
		})
		return
	}
	h.operation(c, func(ctx context.Context, wait bool) error {
		return click(h.module, ctx, wait)
	}, fmt.Sprintf("Button %q click error", button))
}

// streamStates sends a Server-Sent Event for every state change until the
// client goes away.
func (h *handlers) streamStates(c *gin.Context) {
	logger := h.logger.With().Str("stream", uuid.NewString()).Logger()
	logger.Debug().Msg("State stream opened")
	defer logger.Debug().Msg("State stream closed")

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	states := h.module.PollStates().Chan(c.Request.Context())
	c.Stream(func(w io.Writer) bool {
		state, ok := <-states
		if !ok {
			return false
		}
		c.SSEvent("state", state)
		return true
	})
}
