// Package httpapi serves the latest reading and on-demand conversions over a
// small read-only JSON API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ericogr/hczj3-to-mqtt/pkg/config"
	"github.com/ericogr/hczj3-to-mqtt/pkg/humidity"
	"github.com/ericogr/hczj3-to-mqtt/pkg/output"
	"github.com/ericogr/hczj3-to-mqtt/pkg/sensor"
)

const shutdownTimeout = 2 * time.Second

type HTTPOutput struct {
	engine *humidity.Engine
	router *gin.Engine
	srv    *http.Server

	mu     sync.RWMutex
	latest *sensor.Reading
}

// NewHTTP starts listening on cfg.Listen and serves requests in the background.
func NewHTTP(cfg config.HTTPConfig, engine *humidity.Engine) (output.Output, error) {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("http listen: %w", err)
	}
	h := newHTTPOutput(engine)
	h.srv = &http.Server{Handler: h.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("http output stopped")
		}
	}()
	logrus.WithField("addr", ln.Addr().String()).Info("http output listening")
	return h, nil
}

func newHTTPOutput(engine *humidity.Engine) *HTTPOutput {
	gin.SetMode(gin.ReleaseMode)
	h := &HTTPOutput{engine: engine, router: gin.New()}
	h.router.Use(gin.Recovery())
	h.router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	api := h.router.Group("/api/v1")
	api.GET("/reading", h.getReading)
	api.GET("/rh", h.getRH)
	return h
}

func (h *HTTPOutput) getReading(c *gin.Context) {
	h.mu.RLock()
	r := h.latest
	h.mu.RUnlock()
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reading yet"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *HTTPOutput) getRH(c *gin.Context) {
	temp, err := parseFinite(c.Query("temperature"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid temperature"})
		return
	}
	imp, err := parseFinite(c.Query("impedance"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid impedance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"temperature": temp,
		"impedance":   imp,
		"humidity":    h.engine.EstimateRH(temp, imp),
	})
}

// parseFinite rejects NaN and infinities, which JSON cannot carry back.
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func (h *HTTPOutput) Publish(readings []sensor.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	r := readings[len(readings)-1]
	h.mu.Lock()
	h.latest = &r
	h.mu.Unlock()
	return nil
}

func (h *HTTPOutput) Close() error {
	if h.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.srv.Shutdown(ctx)
}
