package planner

import "regexp"

// The detection tables are pure data so tests can enumerate them.

// complexityKeywords mark a query as multi-step work on a word match.
var complexityKeywords = []string{
	"deploy",
	"setup",
	"configure",
	"install",
	"build",
	"monitor",
	"pipeline",
	"environment",
	"process",
	"analyze",
	"migrate",
	"provision",
	"automate",
}

// sequenceIndicators suggest ordered steps inside the query text.
var sequenceIndicators = []string{
	"first",
	"then",
	"next",
	"after",
	"finally",
	"step",
	"followed by",
}

// projectKeywords name a project-level subject.
var projectKeywords = []string{
	"project",
	"application",
	"app",
	"service",
	"system",
	"server",
	"website",
	"database",
	"repository",
}

var numberedItemRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)

// Categories in match order; the first matching table wins.
const (
	CategoryDeployment     = "deployment"
	CategoryDevelopment    = "development"
	CategoryMonitoring     = "monitoring"
	CategoryDataProcessing = "data-processing"
	CategorySystemAdmin    = "system-administration"
)

var categoryOrder = []string{
	CategoryDeployment,
	CategoryMonitoring,
	CategoryDataProcessing,
	CategorySystemAdmin,
	CategoryDevelopment,
}

var categoryPatterns = map[string][]*regexp.Regexp{
	CategoryDeployment: {
		regexp.MustCompile(`(?i)\b(deploy|deployment|release|rollout|ship|launch)\b`),
		regexp.MustCompile(`(?i)\b(provision|infrastructure|production)\b`),
	},
	CategoryMonitoring: {
		regexp.MustCompile(`(?i)\b(monitor|monitoring|track|observe|watch)\b`),
		regexp.MustCompile(`(?i)\b(progress|status report)\b`),
	},
	CategoryDataProcessing: {
		regexp.MustCompile(`(?i)\b(data|dataset|etl|pipeline)\b`),
		regexp.MustCompile(`(?i)\b(transform|parse|analyze|aggregate)\b`),
	},
	CategorySystemAdmin: {
		regexp.MustCompile(`(?i)\b(install|configure|setup|upgrade|restart)\b`),
		regexp.MustCompile(`(?i)\b(permission|user account|service unit|cron)\b`),
	},
	CategoryDevelopment: {
		regexp.MustCompile(`(?i)\b(build|implement|develop|refactor|fix|test)\b`),
		regexp.MustCompile(`(?i)\b(feature|bug|repository|repo|code)\b`),
	},
}

// stepTemplate binds a step description to a registry tool name and a
// fixed parameter mapping. The planner resolves the name at build time and
// drops steps whose tool is not registered.
type stepTemplate struct {
	Description string
	Tool        string
	Params      map[string]any
}

// templates per category. The leading create_todos step is synthesized by
// the planner from the surviving steps, so it is not listed here.
var templates = map[string][]stepTemplate{
	CategoryDeployment: {
		{Description: "Verify the remote environment", Tool: "remote_execute_command",
			Params: map[string]any{"command": "uname -a && df -h ."}},
		{Description: "Prepare the deployment workspace", Tool: "remote_init_workspace", Params: map[string]any{}},
		{Description: "Check repository state", Tool: "remote_list_repositories", Params: map[string]any{}},
		{Description: "Report deployment progress", Tool: "monitor_get_progress_summary", Params: map[string]any{}},
	},
	CategoryDevelopment: {
		{Description: "Inspect working tree status", Tool: "dev_git_status", Params: map[string]any{}},
		{Description: "Locate source files", Tool: "dev_find_files", Params: map[string]any{"pattern": "*.go"}},
		{Description: "Report development progress", Tool: "monitor_get_progress_summary", Params: map[string]any{}},
	},
	CategoryMonitoring: {
		{Description: "List tracked items", Tool: "monitor_get_current_todos", Params: map[string]any{}},
		{Description: "Summarize session progress", Tool: "monitor_get_progress_summary", Params: map[string]any{}},
	},
	CategoryDataProcessing: {
		{Description: "Locate data files", Tool: "dev_find_files", Params: map[string]any{"pattern": "*.csv"}},
		{Description: "Scan for processing scripts", Tool: "dev_search_in_files", Params: map[string]any{"query": "import"}},
		{Description: "Report processing progress", Tool: "monitor_get_progress_summary", Params: map[string]any{}},
	},
	CategorySystemAdmin: {
		{Description: "Inspect system load", Tool: "remote_execute_command",
			Params: map[string]any{"command": "uptime && free -h"}},
		{Description: "Check disk usage", Tool: "remote_execute_command",
			Params: map[string]any{"command": "df -h"}},
		{Description: "Report administration progress", Tool: "monitor_get_progress_summary", Params: map[string]any{}},
	},
}
