package route

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gofiber/utils"
	"github.com/zerbitx/gnockfs/spec"
)

// DefaultMarker separates a file's base name from its method override, as in
// users#post.yml.
const DefaultMarker = '#'

// Extensions are the fixture file extensions, in probe order.
var Extensions = []string{".yml", ".yaml"}

type (
	// Deriver maps fixture files to routes and requests back to fixture files.
	Deriver struct {
		root   string
		marker string
	}

	// Registration binds a route path to the fixture file backing it.
	Registration struct {
		Path     string
		Override spec.Method
		File     string
	}

	invalidMarker rune

	config struct {
		marker rune
	}

	// Option is a function that can modify a default config
	Option func(c *config)
)

// Error implements the error interface
func (im invalidMarker) Error() string {
	return fmt.Sprintf("%q cannot be used as a method marker", rune(im))
}

// WithMarker overrides the default method marker
func WithMarker(marker rune) Option {
	return func(c *config) {
		c.marker = marker
	}
}

// New returns a Deriver rooted at the absolute form of root.
func New(root string, options ...Option) (*Deriver, error) {
	c := &config{marker: DefaultMarker}

	for _, applyOption := range options {
		applyOption(c)
	}

	if !validMarker(c.marker) {
		return nil, invalidMarker(c.marker)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fixture root %s: %w", root, err)
	}

	return &Deriver{
		root:   filepath.Clean(abs),
		marker: string(c.marker),
	}, nil
}

// validMarker keeps the marker out of the characters ordinary path segments use.
func validMarker(r rune) bool {
	if r == 0 || r > unicode.MaxASCII {
		return false
	}
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsControl(r) {
		return false
	}

	switch r {
	case '/', '\\', '.', '-', '_', '~':
		return false
	}

	return true
}

// Root is the absolute fixture directory.
func (d *Deriver) Root() string {
	return d.root
}

// Marker is the method override marker.
func (d *Deriver) Marker() string {
	return d.marker
}

// Derive computes the route for a fixture file under the root.
func (d *Deriver) Derive(file string) (Registration, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return Registration{}, fmt.Errorf("failed to resolve %s: %w", file, err)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(d.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Registration{}, fmt.Errorf("%s is outside fixture root %s", abs, d.root)
	}

	rel = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))

	var segments []string
	for _, segment := range strings.Split(strings.Trim(rel, "/"), "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	reg := Registration{File: abs}

	if last := len(segments) - 1; last >= 0 {
		base, override := d.splitOverride(segments[last])
		reg.Override = override

		if base == "" {
			segments = segments[:last]
		} else {
			segments[last] = base
		}
	}

	reg.Path = "/" + strings.Join(segments, "/")

	return reg, nil
}

// splitOverride separates base#method into its parts. A suffix that is not a
// known method leaves the segment untouched.
func (d *Deriver) splitOverride(segment string) (string, spec.Method) {
	i := strings.LastIndex(segment, d.marker)
	if i < 0 {
		return segment, ""
	}

	method, ok := spec.ParseMethod(segment[i+len(d.marker):])
	if !ok {
		return segment, ""
	}

	return segment[:i], method
}

// Method picks the method the registration should be served under.
func (r Registration) Method(declared spec.Method) spec.Method {
	if r.Override != "" {
		return r.Override
	}
	return declared
}

// IsFixture reports whether name carries a fixture extension.
func IsFixture(name string) bool {
	ext := utils.ToLower(filepath.Ext(name))
	for _, known := range Extensions {
		if ext == known {
			return true
		}
	}
	return false
}
