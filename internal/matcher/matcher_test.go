package matcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolve_ExactMatch(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "accounts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFixture(t, dir, "Login-Request.txt", "login please")
	writeFixture(t, dir, "Login-Response.txt", "welcome back")

	m := New(nil)
	resp, err := m.Resolve(context.Background(), root, "accounts", "login please", "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil {
		t.Fatal("expected a match")
	}
	if resp.Payload != "welcome back" {
		t.Errorf("wrong payload: %q", resp.Payload)
	}
	if resp.MatchingRequest != filepath.Join(dir, "Login-Request.txt") {
		t.Errorf("wrong matched fixture: %q", resp.MatchingRequest)
	}
	if resp.ContentType != "text/plain" {
		t.Errorf("content type not carried: %q", resp.ContentType)
	}
}

func TestResolve_WhitespaceNormalized(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "Ping-Request.txt", "ping\n  pong\n")
	writeFixture(t, root, "Ping-Response.txt", "ok")

	m := New(nil)
	resp, err := m.Resolve(context.Background(), root, "", "ping pong", "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || resp.Payload != "ok" {
		t.Fatalf("expected normalized match, got %+v", resp)
	}
}

func TestResolve_RegexFixture(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "Any-Request.txt", "order id=[0-9]+")
	writeFixture(t, root, "Any-Response.txt", "accepted")

	m := New(nil)
	resp, err := m.Resolve(context.Background(), root, "", "order id=12345", "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || resp.Payload != "accepted" {
		t.Fatalf("expected regex match, got %+v", resp)
	}

	// Anchored: a partial regex match is not a match.
	resp, err = m.Resolve(context.Background(), root, "", "order id=12345 extra", "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Errorf("partial regex match accepted: %+v", resp)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "Login-Request.txt", "login please")
	writeFixture(t, root, "Login-Response.txt", "welcome back")

	m := New(nil)
	resp, err := m.Resolve(context.Background(), root, "", "something else", "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected no match, got %+v", resp)
	}
}

func TestResolve_MissingDirIsNoMatch(t *testing.T) {
	m := New(nil)
	resp, err := m.Resolve(context.Background(), t.TempDir(), "does/not/exist", "x", "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected no match, got %+v", resp)
	}
}

func TestResolve_MissingResponseFixtureIsError(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "Orphan-Request.txt", "hello")

	m := New(nil)
	if _, err := m.Resolve(context.Background(), root, "", "hello", "text/plain"); err == nil {
		t.Fatal("expected error for orphaned request fixture")
	}
}

func TestResolve_FirstInLexicalOrderWins(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "B-Request.txt", "hello")
	writeFixture(t, root, "B-Response.txt", "from b")
	writeFixture(t, root, "A-Request.txt", "hello")
	writeFixture(t, root, "A-Response.txt", "from a")

	m := New(nil)
	resp, err := m.Resolve(context.Background(), root, "", "hello", "text/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || resp.Payload != "from a" {
		t.Fatalf("expected deterministic first match, got %+v", resp)
	}
}
