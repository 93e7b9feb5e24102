// Package matcher resolves inbound requests against stored fixture
// pairs: <TestName>-Request.<ext> holds the request to compare against,
// <TestName>-Response.<ext> beside it holds the response to return.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/tjfontaine/httpsim/internal/simulator"
)

const (
	requestMark  = "-Request."
	responseMark = "-Response."
)

// Matcher is a filesystem fixture resolver. The fixture tree is read on
// every call and never mutated, so concurrent cycles can share it freely.
type Matcher struct {
	logger *slog.Logger
}

// New creates a Matcher.
func New(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger}
}

// Resolve implements simulator.ResolveFunc over the fixture directory
// rootPath/rootRelativePath. Fixture request files are compared against
// the inbound payload after whitespace normalization; a stored request
// that is not an exact match is retried as an anchored regular
// expression. Candidates are tried in lexical order; the first match
// wins. A missing directory or no matching fixture yields (nil, nil).
func (m *Matcher) Resolve(ctx context.Context, rootPath, rootRelativePath, request, contentType string) (*simulator.SimulatorResponse, error) {
	dir := filepath.Join(rootPath, filepath.FromSlash(rootRelativePath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read fixture dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.Contains(e.Name(), requestMark) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	normRequest := normalize(request)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fixturePath := filepath.Join(dir, name)
		stored, err := os.ReadFile(fixturePath)
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", name, err)
		}
		if !matches(normalize(string(stored)), normRequest) {
			continue
		}

		responseName := responseFileName(name)
		payload, err := os.ReadFile(filepath.Join(dir, responseName))
		if err != nil {
			return nil, fmt.Errorf("read response fixture %s: %w", responseName, err)
		}

		m.logger.Debug("fixture matched",
			slog.String("fixture", fixturePath),
			slog.String("path", rootRelativePath))

		return &simulator.SimulatorResponse{
			Payload:         string(payload),
			ContentType:     contentType,
			MatchingRequest: fixturePath,
		}, nil
	}

	return nil, nil
}

func responseFileName(requestName string) string {
	idx := strings.LastIndex(requestName, requestMark)
	return requestName[:idx] + responseMark + requestName[idx+len(requestMark):]
}

// matches compares a normalized stored request against the normalized
// inbound one: exact first, then as an anchored regular expression. An
// uncompilable stored request simply does not match.
func matches(stored, request string) bool {
	if stored == request {
		return true
	}
	re, err := regexp.Compile("(?s)^(?:" + stored + ")$")
	if err != nil {
		return false
	}
	return re.MatchString(request)
}

// normalize collapses runs of whitespace so formatting differences in
// stored fixtures do not defeat matching.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
