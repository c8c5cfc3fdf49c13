package gnocker

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber"
	"github.com/sirupsen/logrus"
	"github.com/zerbitx/gnockfs/cache"
	"github.com/zerbitx/gnockfs/resolver"
	"github.com/zerbitx/gnockfs/route"
	"github.com/zerbitx/gnockfs/spec"
	"github.com/zerbitx/gnockfs/watcher"
)

type (
	fiberBinding func(string, ...fiber.Handler) *fiber.Route

	gnocker struct {
		app            *fiber.App
		configBasePath string
		handlerBases   map[spec.Method]fiberBinding
		deriver        *route.Deriver
		cache          *cache.Cache
		resolver       *resolver.Resolver
		watcher        *watcher.Watcher
		watch          bool
		logger         logrus.FieldLogger
		port           int
		host           string
		version        string
		started        time.Time
	}

	config struct {
		port           int
		configBasePath string
		host           string
		fixtureRoot    string
		marker         rune
		watch          bool
		debounce       time.Duration
		version        string
		logger         logrus.FieldLogger
	}

	// Option is a function that can modify a default config
	Option func(c *config)
)

const (
	// FixtureHeader names the fixture file that produced a response
	FixtureHeader = "X-Gnocker-Fixture"

	// RequestIDHeader carries the id the access log records for a request
	RequestIDHeader = "X-Request-Id"

	// Greeting is served at the root path
	Greeting = "Hello!"
)

// fiber would read these as parameters or wildcards, so such fixtures are only
// served by request time lookup.
const routeSyntax = ":*?+"

// New returns a new gnocker serving the fixtures under the configured root, by
// default the working directory, on 127.0.0.1:8080
func New(options ...Option) (*gnocker, error) {
	c := &config{
		port:           8080,
		logger:         logrus.StandardLogger(),
		host:           "127.0.0.1",
		configBasePath: "/gnockconfig",
		fixtureRoot:    ".",
		marker:         route.DefaultMarker,
		watch:          true,
		debounce:       watcher.DefaultDebounce,
		version:        "dev",
	}

	for _, applyOption := range options {
		applyOption(c)
	}

	deriver, err := route.New(c.fixtureRoot, route.WithMarker(c.marker))
	if err != nil {
		return nil, fmt.Errorf("failed to set up fixture routes: %w", err)
	}

	fixtureCache := cache.New(cache.WithLogger(c.logger))

	app := fiber.New(&fiber.Settings{
		ServerHeader:          "GnockGnock",
		DisableStartupMessage: true,
		CaseSensitive:         true,
	})

	g := &gnocker{
		logger:         c.logger,
		app:            app,
		port:           c.port,
		host:           c.host,
		version:        c.version,
		started:        time.Now(),
		configBasePath: c.configBasePath,
		deriver:        deriver,
		cache:          fixtureCache,
		resolver:       resolver.New(deriver, fixtureCache, resolver.WithLogger(c.logger)),
		watcher: watcher.New(deriver, fixtureCache,
			watcher.WithLogger(c.logger),
			watcher.WithDebounce(c.debounce),
		),
		watch: c.watch,
		handlerBases: map[spec.Method]fiberBinding{
			spec.MethodGet:     app.Get,
			spec.MethodPost:    app.Post,
			spec.MethodDelete:  app.Delete,
			spec.MethodPatch:   app.Patch,
			spec.MethodPut:     app.Put,
			spec.MethodOptions: app.Options,
			spec.MethodHead:    app.Head,
		},
	}

	app.Use(g.accessLog)

	app.Get("/", func(c *fiber.Ctx) {
		c.Send(Greeting)
	})
	app.Get("/health", g.health)

	g.initConfigEndpoints()
	g.registerFixtures()

	// anything the router did not match may be a fixture added since startup
	app.Use(g.serveDynamic)

	return g, nil
}

// Start starts watching the fixture root, then serves until the app is shut down
func (g *gnocker) Start() error {
	if g.watch {
		if err := g.watcher.Start(); err != nil {
			g.logger.WithError(err).Warn("hot reload disabled")
		}
	}

	errc := make(chan error)

	go func() {
		g.logger.WithFields(logrus.Fields{
			"host":     g.host,
			"port":     g.port,
			"fixtures": g.deriver.Root(),
		}).Info("main")
		errc <- g.app.Listen(fmt.Sprintf("%s:%d", g.host, g.port))
	}()

	return <-errc
}

// Shutdown stops the watcher and gracefully shuts down the app
func (g *gnocker) Shutdown() error {
	g.watcher.Stop()

	if shutdownErr := g.app.Shutdown(); shutdownErr != nil {
		return fmt.Errorf("failed to shutdown app %w", shutdownErr)
	}

	return nil
}

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithHost sets the host
func WithHost(host string) Option {
	return func(c *config) {
		c.host = host
	}
}

// WithPort sets the main app's port
func WithPort(port int) Option {
	return func(c *config) {
		c.port = port
	}
}

// WithConfigBasePath sets the base path of the admin endpoints
func WithConfigBasePath(basePath string) Option {
	return func(c *config) {
		c.configBasePath = basePath
	}
}

// WithFixtureRoot sets the directory fixtures are served from
func WithFixtureRoot(dir string) Option {
	return func(c *config) {
		c.fixtureRoot = dir
	}
}

// WithMarker overrides the character separating a fixture name from its method
func WithMarker(marker rune) Option {
	return func(c *config) {
		c.marker = marker
	}
}

// WithWatch turns filesystem watching on or off
func WithWatch(watch bool) Option {
	return func(c *config) {
		c.watch = watch
	}
}

// WithDebounce sets how long filesystem events are batched before invalidating
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		c.debounce = d
	}
}

// WithVersion sets the version reported by /health
func WithVersion(version string) Option {
	return func(c *config) {
		c.version = version
	}
}

// registerFixtures binds a route for every fixture found at startup.
func (g *gnocker) registerFixtures() {
	routes, err := g.resolver.Load()
	if err != nil {
		g.logger.WithError(err).WithField("directory", g.deriver.Root()).Warn("mock response directory not loaded")
		return
	}

	for _, rt := range routes {
		if strings.ContainsAny(rt.Path, routeSyntax) {
			g.logger.WithFields(logrus.Fields{
				"path": rt.Path,
				"file": rt.File,
			}).Debug("serving fixture by lookup only")
			continue
		}

		rt := rt
		g.handlerBases[rt.Registered](rt.Path, func(c *fiber.Ctx) {
			res, err := g.resolver.ServeRoute(c.Fasthttp, rt)
			g.respond(c, res, err)
		})
	}

	g.logger.WithField("count", len(routes)).Info("registered mock routes")
}

func (g *gnocker) serveDynamic(c *fiber.Ctx) {
	requestPath := string(c.Fasthttp.Request.URI().PathOriginal())

	res, err := g.resolver.Resolve(c.Fasthttp, requestPath, c.Method())
	g.respond(c, res, err)
}

func (g *gnocker) respond(c *fiber.Ctx, res *resolver.Response, err error) {
	switch {
	case errors.Is(err, resolver.ErrNoFixture):
		res = &resolver.Response{
			Status: http.StatusNotFound,
			Body:   resolver.NotFoundBody(),
		}
	case err != nil:
		// the request went away while latency was applied
		g.logger.WithError(err).WithField("path", c.Path()).Debug("dropping response")
		return
	}

	if res.Fixture != "" {
		c.Set(FixtureHeader, res.Fixture)
	}
	c.Set("Content-Type", resolver.ContentType)
	c.Status(res.Status)
	c.SendBytes(res.Body)
}
