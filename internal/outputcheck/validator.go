// Package outputcheck classifies raw tool output as success, warning or
// error by matching per-command-class pattern tables.
package outputcheck

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"conduit/internal/logging"
)

// Status is the classification outcome.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

// Overlay carries caller-supplied context hooks. A missing expected element
// or a present forbidden element promotes the result to ERROR regardless of
// pattern matches.
type Overlay struct {
	ExpectedName     string
	ExpectedContent  string
	ForbiddenContent []string
}

// Report is the classification result.
type Report struct {
	Status         Status `json:"status"`
	Class          string `json:"class"`
	MatchedPattern string `json:"matched_pattern,omitempty"`
	Context        string `json:"context,omitempty"`
	ExitCode       int    `json:"exit_code"`
	Detail         string `json:"detail,omitempty"`
}

var exitCodeRe = regexp.MustCompile(`(?i)exit\s*code\s*[:=]?\s*(-?\d+)`)

// Validator evaluates outputs against the rule tables.
type Validator struct {
	rules  map[string]Rule
	logger logging.Logger
}

// New returns a validator over the default rule tables.
func New(logger logging.Logger) *Validator {
	return &Validator{rules: DefaultRules(), logger: logging.OrNop(logger)}
}

// Classify runs the evaluation order from the design: error patterns, then
// warning patterns, then expected patterns, then UNKNOWN. Overlay checks and
// a non-zero parsed exit code promote to ERROR.
func (v *Validator) Classify(class, output string, overlay *Overlay) Report {
	report := Report{Status: StatusUnknown, Class: class}

	rule, ok := v.rules[class]
	if !ok {
		// Unknown class degrades to the generic execution rule.
		rule = v.rules[ClassCommandExecution]
		report.Class = ClassCommandExecution
	}

	if overlay != nil {
		if hit := v.checkOverlay(output, overlay); hit != "" {
			report.Status = StatusError
			report.Detail = hit
			report.ExitCode = parseExitCode(output)
			return report
		}
	}

	if code := parseExitCode(output); code != 0 {
		report.Status = StatusError
		report.ExitCode = code
		report.Detail = fmt.Sprintf("non-zero exit code %d", code)
		return report
	}

	for _, pattern := range rule.ErrorPatterns {
		if idx := strings.Index(output, pattern); idx >= 0 {
			report.Status = StatusError
			report.MatchedPattern = pattern
			report.Context = contextSnippet(output, idx)
			return report
		}
	}
	for _, pattern := range rule.WarningPatterns {
		if strings.Contains(output, pattern) {
			report.Status = StatusWarning
			report.MatchedPattern = pattern
			return report
		}
	}
	for _, pattern := range rule.ExpectedPatterns {
		if strings.Contains(output, pattern) {
			report.Status = StatusSuccess
			report.MatchedPattern = pattern
			return report
		}
	}
	return report
}

func (v *Validator) checkOverlay(output string, overlay *Overlay) string {
	if overlay.ExpectedName != "" && !strings.Contains(output, overlay.ExpectedName) {
		return fmt.Sprintf("expected name %q not present in output", overlay.ExpectedName)
	}
	if overlay.ExpectedContent != "" && !strings.Contains(output, overlay.ExpectedContent) {
		return "expected content not present in output"
	}
	for _, forbidden := range overlay.ForbiddenContent {
		if forbidden != "" && strings.Contains(output, forbidden) {
			return fmt.Sprintf("forbidden content %q present in output", forbidden)
		}
	}
	return ""
}

// parseExitCode extracts a numeric exit code from output text; 0 when absent.
func parseExitCode(output string) int {
	m := exitCodeRe.FindStringSubmatch(output)
	if len(m) != 2 {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return code
}

// contextSnippet returns the matched line with up to two lines on each side.
func contextSnippet(output string, idx int) string {
	lines := strings.Split(output, "\n")
	offset := 0
	matchLine := 0
	for i, line := range lines {
		if idx >= offset && idx <= offset+len(line) {
			matchLine = i
			break
		}
		offset += len(line) + 1
	}
	start := matchLine - 2
	if start < 0 {
		start = 0
	}
	end := matchLine + 3
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}
