package gnocker

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber"
	"github.com/sirupsen/logrus"
	"github.com/zerbitx/gnockfs/encode"
	"github.com/zerbitx/gnockfs/resolver"
)

type (
	routeView struct {
		Path   string `json:"path"`
		Method string `json:"method"`
		File   string `json:"file"`
	}

	healthView struct {
		Status    string  `json:"status"`
		Uptime    float64 `json:"uptime"`
		Version   string  `json:"version"`
		Timestamp string  `json:"timestamp"`
	}
)

func (g *gnocker) health(c *fiber.Ctx) {
	body, err := encode.Canonical(healthView{
		Status:    "ok",
		Uptime:    time.Since(g.started).Seconds(),
		Version:   g.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	if err != nil {
		g.logger.WithError(err).Error("Failed to encode response")
		c.SendStatus(http.StatusInternalServerError)
		return
	}

	c.Set("Content-Type", resolver.ContentType)
	c.SendBytes(body)
}

func (g *gnocker) initConfigEndpoints() {
	cachePath := g.configBasePath + "/cache"

	g.logger.
		WithFields(logrus.Fields{
			http.MethodGet:    g.configBasePath,
			http.MethodDelete: cachePath,
		}).Debug("config endpoints")

	g.app.Get(g.configBasePath, func(c *fiber.Ctx) {
		routes := []routeView{}
		for _, rt := range g.resolver.Routes() {
			routes = append(routes, routeView{
				Path:   rt.Path,
				Method: rt.Registered.String(),
				File:   g.deriver.Relative(rt.File),
			})
		}

		c.Set("Content-Type", resolver.ContentType)

		err := encode.JSONIndented(routes, c.Fasthttp.Response.BodyWriter())

		if err != nil {
			g.logger.WithError(err).Error("Failed to encode response")
			c.SendStatus(http.StatusInternalServerError)
			return
		}
	})

	g.app.Delete(cachePath, func(c *fiber.Ctx) {
		cleared := g.cache.Clear()

		g.logger.WithField("count", cleared).Info("cleared fixture cache")

		c.Set("Content-Type", resolver.ContentType)

		err := encode.JSONIndented(map[string]int{"cleared": cleared}, c.Fasthttp.Response.BodyWriter())

		if err != nil {
			g.logger.WithError(err).Error("Failed to encode response")
			c.SendStatus(http.StatusInternalServerError)
			return
		}
	})
}
