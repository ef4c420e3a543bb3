package remote

import (
	"testing"

	conduiterrors "conduit/internal/errors"
)

func TestCheckPathRejectsTraversal(t *testing.T) {
	for _, p := range []string{"../etc/passwd", "a/../../b", "/etc/passwd", "~/secrets", ".."} {
		err := checkPath(p)
		if err == nil {
			t.Fatalf("%q: expected rejection", p)
		}
		if !conduiterrors.IsSecurity(err) {
			t.Fatalf("%q: expected security error, got %v", p, err)
		}
	}
	if err := checkPath(""); err == nil || conduiterrors.IsSecurity(err) {
		t.Fatalf("empty path should be a validation error, got %v", err)
	}
}

func TestCheckPathAcceptsRelativePaths(t *testing.T) {
	for _, p := range []string{"notes.txt", "src/main.go", "a/b/c.json", "dir.with.dots/file.md"} {
		if err := checkPath(p); err != nil {
			t.Fatalf("%q: unexpected error %v", p, err)
		}
	}
}

func TestCheckWritePathEnforcesWhitelist(t *testing.T) {
	if err := checkWritePath("notes.txt"); err != nil {
		t.Fatalf("txt should be writable: %v", err)
	}
	if err := checkWritePath("src/main.go"); err != nil {
		t.Fatalf("go should be writable: %v", err)
	}
	for _, p := range []string{"payload.exe", "lib.so", "binary", "archive.tar.gz"} {
		err := checkWritePath(p)
		if err == nil {
			t.Fatalf("%q: expected rejection", p)
		}
		if !conduiterrors.IsSecurity(err) {
			t.Fatalf("%q: expected security error, got %v", p, err)
		}
	}
}

func TestCheckRepoName(t *testing.T) {
	for _, name := range []string{"myrepo", "my-repo", "repo.v2"} {
		if err := checkRepoName(name); err != nil {
			t.Fatalf("%q: unexpected error %v", name, err)
		}
	}
	for _, name := range []string{"", "a/b", "..", "."} {
		if err := checkRepoName(name); err == nil {
			t.Fatalf("%q: expected rejection", name)
		}
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("plain"); got != "'plain'" {
		t.Fatalf("got %s", got)
	}
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Fatalf("got %s", got)
	}
}

func TestRepoNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/widget.git": "widget",
		"https://github.com/acme/widget":     "widget",
		"git@github.com:acme/widget.git":     "widget",
		"https://example.com/deep/path/x/":   "x",
	}
	for url, want := range cases {
		if got := repoNameFromURL(url); got != want {
			t.Fatalf("%q: expected %s, got %s", url, want, got)
		}
	}
}
