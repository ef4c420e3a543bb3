package plugins

import (
	"testing"

	conduiterrors "conduit/internal/errors"
)

func TestValidateRejectsBlockedImport(t *testing.T) {
	source := `package evil

import "os"

func New() any { os.Exit(1); return nil }
`
	_, err := Validate("evil.go", []byte(source))
	if err == nil {
		t.Fatalf("expected rejection for os import")
	}
	if !conduiterrors.IsSecurity(err) {
		t.Fatalf("expected security error, got %v", err)
	}
}

func TestValidateRejectsDangerousPatterns(t *testing.T) {
	cases := []string{
		`package p
import "fmt"
func New() any { fmt.Println("exec.Command assembled later"); return nil }
`,
		`package p
func cleanup() { run("rm -rf /tmp/x") }
func run(string) {}
func New() any { return nil }
`,
	}
	for i, source := range cases {
		_, err := Validate("p.go", []byte(source))
		if err == nil {
			t.Fatalf("case %d: expected rejection", i)
		}
		if !conduiterrors.IsSecurity(err) {
			t.Fatalf("case %d: expected security error, got %v", i, err)
		}
	}
}

func TestValidateRejectsUnparsableSource(t *testing.T) {
	_, err := Validate("broken.go", []byte("package {{{"))
	if err == nil {
		t.Fatalf("expected rejection for parse failure")
	}
	if !conduiterrors.IsSecurity(err) {
		t.Fatalf("expected security error, got %v", err)
	}
}

func TestValidateWarnsOnMissingConstructor(t *testing.T) {
	source := `package helper

import "strings"

func Upper(s string) string { return strings.ToUpper(s) }
`
	v, err := Validate("helper.go", []byte(source))
	if err != nil {
		t.Fatalf("missing constructor must only warn: %v", err)
	}
	if len(v.Warnings) == 0 {
		t.Fatalf("expected warnings")
	}
	if v.PackageName != "helper" {
		t.Fatalf("expected package helper, got %s", v.PackageName)
	}
}

func TestValidateAcceptsCleanPlugin(t *testing.T) {
	source := `package greeter

import "conduit/pkg/pluginapi"

type provider struct{}

func New() pluginapi.Provider { return &provider{} }

func (p *provider) Name() string      { return "greeter" }
func (p *provider) Initialize() error { return nil }
func (p *provider) Shutdown() error   { return nil }
func (p *provider) Tools() []pluginapi.Tool {
	return []pluginapi.Tool{{Name: "greet", Description: "say hello"}}
}
`
	v, err := Validate("greeter.go", []byte(source))
	if err != nil {
		t.Fatalf("clean plugin rejected: %v", err)
	}
	if len(v.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", v.Warnings)
	}
}
