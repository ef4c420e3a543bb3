package outputcheck

// Rule is a pure-data classification table for one command class.
// Keeping the tables out of control flow lets tests enumerate them.
type Rule struct {
	Name              string
	ExpectedPatterns  []string
	ErrorPatterns     []string
	WarningPatterns   []string
	RequiredElements  []string
	ForbiddenElements []string
}

// Command classes understood by the classifier.
const (
	ClassDirectoryCreation = "directory_creation"
	ClassDirectoryListing  = "directory_listing"
	ClassFileCreation      = "file_creation"
	ClassFileReading       = "file_reading"
	ClassCommandExecution  = "command_execution"
)

var commonErrors = []string{
	"No such file or directory",
	"Permission denied",
	"command not found",
	"Operation not permitted",
	"cannot access",
	"Connection refused",
	"fatal:",
	"error:",
	"Error:",
	"Traceback (most recent call last)",
}

// DefaultRules returns the per-class rule tables.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		ClassDirectoryCreation: {
			Name:             ClassDirectoryCreation,
			ExpectedPatterns: []string{"created directory", "mkdir"},
			ErrorPatterns: append([]string{
				"File exists",
				"cannot create directory",
			}, commonErrors...),
			WarningPatterns: []string{"already exists"},
		},
		ClassDirectoryListing: {
			Name:             ClassDirectoryListing,
			ExpectedPatterns: []string{"total ", "drwx", "-rw-", ".", ".."},
			ErrorPatterns: append([]string{
				"cannot open directory",
			}, commonErrors...),
			WarningPatterns: []string{"empty directory"},
		},
		ClassFileCreation: {
			Name:             ClassFileCreation,
			ExpectedPatterns: []string{"written", "created", "saved", "bytes"},
			ErrorPatterns: append([]string{
				"No space left on device",
				"Read-only file system",
				"forbidden extension",
			}, commonErrors...),
			WarningPatterns: []string{"overwrote", "truncated"},
		},
		ClassFileReading: {
			Name:             ClassFileReading,
			ExpectedPatterns: []string{},
			ErrorPatterns: append([]string{
				"Is a directory",
				"file too large",
			}, commonErrors...),
			WarningPatterns: []string{"binary file", "truncated"},
		},
		ClassCommandExecution: {
			Name:             ClassCommandExecution,
			ExpectedPatterns: []string{"Exit Code: 0"},
			ErrorPatterns: append([]string{
				"Segmentation fault",
				"core dumped",
				"killed",
			}, commonErrors...),
			WarningPatterns: []string{"warning:", "Warning:", "deprecated"},
		},
	}
}
