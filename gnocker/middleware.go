package gnocker

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (g *gnocker) accessLog(c *fiber.Ctx) {
	start := time.Now()
	requestID := uuid.New().String()

	c.Set(RequestIDHeader, requestID)
	c.Next()

	status := c.Fasthttp.Response.StatusCode()
	path := c.Path()
	if path == "" {
		path = "/"
	}

	g.logger.WithFields(logrus.Fields{
		"method":     c.Method(),
		"path":       path,
		"status":     status,
		"duration":   time.Since(start).String(),
		"request_id": requestID,
	}).Info(fmt.Sprintf("%s %s -> %d", c.Method(), path, status))
}
