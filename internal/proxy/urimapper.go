package proxy

import (
	"fmt"
	"strings"
)

// Mapping pairs a request-path prefix with the upstream base URL it
// forwards to.
type Mapping struct {
	Prefix string
	Target string
}

// URIMapper maps an inbound request path to an upstream URL. The first
// mapping whose prefix matches wins; the remainder of the path is
// appended to the target base URL.
type URIMapper struct {
	mappings []Mapping
}

// NewURIMapper creates a mapper from the configured mappings.
func NewURIMapper(mappings []Mapping) *URIMapper {
	ms := make([]Mapping, len(mappings))
	for i, m := range mappings {
		ms[i] = Mapping{
			Prefix: strings.Trim(m.Prefix, "/"),
			Target: strings.TrimSuffix(m.Target, "/"),
		}
	}
	return &URIMapper{mappings: ms}
}

// Map resolves a request path to its upstream URL. The path is matched
// with its leading slash stripped.
func (u *URIMapper) Map(path string) (string, error) {
	p := strings.TrimPrefix(path, "/")
	for _, m := range u.mappings {
		if m.Prefix == "" {
			return m.Target + "/" + p, nil
		}
		if p == m.Prefix {
			return m.Target, nil
		}
		if strings.HasPrefix(p, m.Prefix+"/") {
			return m.Target + strings.TrimPrefix(p, m.Prefix), nil
		}
	}
	return "", fmt.Errorf("no upstream mapping for %q", path)
}
