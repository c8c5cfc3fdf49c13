package resolver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zerbitx/gnockfs/route"
	"github.com/zerbitx/gnockfs/spec"
)

// ErrNoFixture means no fixture answers the request.
var ErrNoFixture = errors.New("no fixture")

type (
	// Source hands out parsed definitions. A nil definition with a nil error
	// means the file no longer exists.
	Source interface {
		Get(file string) (*spec.RouteDefinition, error)
	}

	// Route is a fixture registered at startup under a fixed method.
	Route struct {
		route.Registration
		Registered spec.Method
	}

	// Resolver turns requests into fixture responses, first from the routes
	// registered at startup and then by looking for a file on disk.
	Resolver struct {
		deriver *route.Deriver
		source  Source
		logger  logrus.FieldLogger

		mu     sync.RWMutex
		static map[string]Route
	}

	config struct {
		logger logrus.FieldLogger
	}

	// Option is a function that can modify a default config
	Option func(c *config)

	// policy decides what a bare fixture declaring another method means.
	policy int
)

const (
	// startup routes keep serving after their file changes method
	warnOnMismatch policy = iota
	// request time lookups must not pick up an unrelated fixture
	missOnMismatch
)

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// New returns a Resolver with no static routes.
func New(deriver *route.Deriver, source Source, options ...Option) *Resolver {
	c := &config{logger: logrus.StandardLogger()}

	for _, applyOption := range options {
		applyOption(c)
	}

	return &Resolver{
		deriver: deriver,
		source:  source,
		logger:  c.logger,
		static:  map[string]Route{},
	}
}

func routeKey(method spec.Method, path string) string {
	return string(method) + " " + path
}

// Load registers a route for every fixture that parses at startup. Fixtures
// that fail are skipped with a warning; they can still be served later by
// request time lookup once fixed.
func (r *Resolver) Load() ([]Route, error) {
	regs, err := r.deriver.Enumerate()
	if err != nil {
		return nil, err
	}

	var routes []Route
	for _, reg := range regs {
		log := r.logger.WithField("file", reg.File)

		definition, err := r.source.Get(reg.File)
		if err != nil {
			log.WithField("reason", err.Error()).Warn("skipping mock route")
			continue
		}
		if definition == nil {
			log.Debug("fixture vanished during startup")
			continue
		}

		method := reg.Method(definition.Method)
		if reg.Override != "" && reg.Override != definition.Method {
			log.WithFields(logrus.Fields{
				"method": reg.Override,
				"yaml":   definition.Method,
			}).Warn("method override from filename")
		}

		rt := Route{Registration: reg, Registered: method}
		if !r.Register(rt) {
			log.WithFields(logrus.Fields{
				"path":   reg.Path,
				"method": method,
			}).Warn("route already registered by another fixture")
			continue
		}

		log.WithFields(logrus.Fields{
			"path":   reg.Path,
			"method": method,
		}).Debug("registered mock route")

		routes = append(routes, rt)
	}

	return routes, nil
}

// Register adds a static route. The first route for a method and path wins.
func (r *Resolver) Register(rt Route) bool {
	key := routeKey(rt.Registered, rt.Path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.static[key]; taken {
		return false
	}
	r.static[key] = rt

	return true
}

// Routes lists the static routes ordered by path then method.
func (r *Resolver) Routes() []Route {
	r.mu.RLock()
	routes := make([]Route, 0, len(r.static))
	for _, rt := range r.static {
		routes = append(routes, rt)
	}
	r.mu.RUnlock()

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Registered < routes[j].Registered
	})

	return routes
}

// Resolve answers method on requestPath from the static routes, falling back
// to a fixture file found on disk. ErrNoFixture means nothing matched; a
// context error means the request was cancelled while waiting out latency.
func (r *Resolver) Resolve(ctx context.Context, requestPath, method string) (*Response, error) {
	m, _ := spec.ParseMethod(method)

	path, ok := r.deriver.Sanitize(requestPath)
	if !ok {
		return nil, ErrNoFixture
	}

	r.mu.RLock()
	rt, found := r.static[routeKey(m, path)]
	r.mu.RUnlock()

	if found {
		return r.ServeRoute(ctx, rt)
	}

	return r.serveDynamic(ctx, requestPath, m)
}

// ServeRoute answers a request matched to a static route.
func (r *Resolver) ServeRoute(ctx context.Context, rt Route) (*Response, error) {
	return r.serve(ctx, rt.File, rt.Override, rt.Registered, warnOnMismatch)
}

func (r *Resolver) serveDynamic(ctx context.Context, requestPath string, method spec.Method) (*Response, error) {
	candidate, ok := r.deriver.Lookup(requestPath, method)
	if !ok {
		return nil, ErrNoFixture
	}

	r.logger.WithFields(logrus.Fields{
		"file":   candidate.File,
		"method": method,
	}).Debug("resolved fixture at request time")

	return r.serve(ctx, candidate.File, candidate.Override, method, missOnMismatch)
}

func (r *Resolver) serve(
	ctx context.Context,
	file string,
	override, expected spec.Method,
	onMismatch policy,
) (*Response, error) {
	log := r.logger.WithField("file", file)
	fixture := r.deriver.Relative(file)

	definition, err := r.source.Get(file)
	if err != nil {
		log.WithField("reason", err.Error()).Error("failed to reload mock route")
		return loadFailure(err, fixture), nil
	}
	if definition == nil {
		log.WithField("reason", "File not found").Warn("fixture missing")
		return notFound(fixture), nil
	}

	switch {
	case override != "":
		if definition.Method != override {
			log.WithFields(logrus.Fields{
				"registered": override,
				"configured": definition.Method,
			}).Warn("mock route method does not match registered method")
		}
	case definition.Method != expected:
		if onMismatch == missOnMismatch {
			log.WithFields(logrus.Fields{
				"requested":  expected,
				"configured": definition.Method,
			}).Debug("fixture declares another method")
			return nil, ErrNoFixture
		}
		log.WithFields(logrus.Fields{
			"registered": expected,
			"configured": definition.Method,
		}).Warn("mock route method does not match registered method")
	}

	if err := wait(ctx, definition.Latency); err != nil {
		return nil, err
	}

	return &Response{
		Status:  definition.Status,
		Body:    definition.Body,
		Fixture: fixture,
	}, nil
}

// wait holds the current request for d unless its context ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
