package route

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/zerbitx/gnockfs/spec"
)

// Candidate is a fixture file found for a request at request time.
type Candidate struct {
	File     string
	Override spec.Method
}

// Sanitize decodes a request path and returns its canonical route form. It
// refuses any path with a parent directory segment.
func (d *Deriver) Sanitize(requestPath string) (string, bool) {
	segments, ok := d.segments(requestPath)
	if !ok {
		return "", false
	}

	return "/" + strings.Join(segments, "/"), true
}

// Lookup finds the fixture file that would serve method on requestPath. A
// method specific file wins over a bare one.
func (d *Deriver) Lookup(requestPath string, method spec.Method) (Candidate, bool) {
	segments, ok := d.segments(requestPath)
	if !ok || len(segments) == 0 {
		return Candidate{}, false
	}

	// an override file is never served as a bare file
	if strings.Contains(segments[len(segments)-1], d.marker) {
		return Candidate{}, false
	}

	base := filepath.Join(append([]string{d.root}, segments...)...)

	if m, known := spec.ParseMethod(string(method)); known {
		for _, name := range []string{m.Lower(), string(m)} {
			if file, found := probe(base + d.marker + name); found {
				return Candidate{File: file, Override: m}, true
			}
		}
	}

	if file, found := probe(base); found {
		return Candidate{File: file}, true
	}

	return Candidate{}, false
}

func (d *Deriver) segments(requestPath string) ([]string, bool) {
	decoded, err := url.PathUnescape(requestPath)
	if err != nil {
		return nil, false
	}

	var segments []string
	for _, segment := range strings.Split(strings.Trim(decoded, "/"), "/") {
		switch {
		case segment == "" || segment == ".":
			continue
		case segment == "..":
			return nil, false
		case filepath.Separator != '/' && strings.ContainsRune(segment, filepath.Separator):
			return nil, false
		case strings.ContainsRune(segment, 0):
			return nil, false
		}
		segments = append(segments, segment)
	}

	return segments, true
}

func probe(base string) (string, bool) {
	for _, ext := range Extensions {
		file := base + ext
		if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
			return file, true
		}
	}
	return "", false
}
