package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
	"github.com/zerbitx/gnockfs/spec"
)

type (
	// Cache holds parsed fixtures keyed by absolute file path. An entry is
	// trusted only while the file's modification time and checksum still match.
	Cache struct {
		mu      sync.Mutex
		entries map[string]entry
		parse   ParseFunc
		logger  logrus.FieldLogger
	}

	entry struct {
		definition   *spec.RouteDefinition
		modifiedTime time.Time
		checksum     uint64
	}

	// ParseFunc turns file contents into a definition.
	ParseFunc func([]byte) (*spec.RouteDefinition, error)

	config struct {
		parse  ParseFunc
		logger logrus.FieldLogger
	}

	// Option is a function that can modify a default config
	Option func(c *config)
)

// WithLogger overrides the default logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithParser overrides spec.Parse
func WithParser(parse ParseFunc) Option {
	return func(c *config) {
		c.parse = parse
	}
}

// New returns an empty Cache
func New(options ...Option) *Cache {
	c := &config{
		parse:  spec.Parse,
		logger: logrus.StandardLogger(),
	}

	for _, applyOption := range options {
		applyOption(c)
	}

	return &Cache{
		entries: map[string]entry{},
		parse:   c.parse,
		logger:  c.logger,
	}
}

// Get returns the definition for file, parsing it only when it changed since
// the last successful parse. A file that does not exist yields nil and no
// error. A parse failure is returned as is and leaves any previous entry alone.
func (c *Cache) Get(file string) (*spec.RouteDefinition, error) {
	key := Key(file)
	log := c.logger.WithField("file", key)

	info, err := os.Stat(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.remove(key)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat fixture: %w", err)
	}

	contents, err := os.ReadFile(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.remove(key)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	modifiedTime := info.ModTime()
	checksum := xxhash.Sum64(contents)

	c.mu.Lock()
	cached, ok := c.entries[key]
	c.mu.Unlock()

	if ok && cached.modifiedTime.Equal(modifiedTime) && cached.checksum == checksum {
		log.Debug("using cached fixture")
		return cached.definition, nil
	}

	log.Debug("loading fixture from disk")

	definition, err := c.parse(contents)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = entry{
		definition:   definition,
		modifiedTime: modifiedTime,
		checksum:     checksum,
	}
	c.mu.Unlock()

	return definition, nil
}

// Invalidate drops the entry for file. Unknown files are ignored.
func (c *Cache) Invalidate(file string) {
	key := Key(file)
	if c.remove(key) {
		c.logger.WithField("file", key).Debug("invalidated cache")
	}
}

// Clear drops every entry and reports how many there were.
func (c *Cache) Clear() int {
	c.mu.Lock()
	count := len(c.entries)
	c.entries = map[string]entry{}
	c.mu.Unlock()

	c.logger.WithField("count", count).Debug("cleared all cached fixtures")

	return count
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Contains reports whether file currently has an entry.
func (c *Cache) Contains(file string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[Key(file)]
	return ok
}

func (c *Cache) remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)

	return ok
}

// Key normalizes a file path into the form entries are stored under.
func Key(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return filepath.Clean(file)
}
