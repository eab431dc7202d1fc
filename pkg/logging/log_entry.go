package logging

// LogEntry represents a structured log record with fields particularly
// relevant to evolutionary search runs.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Search-specific fields
	RunID      string // Identifier of the search run
	Generation int    // Generation index, -1 when outside the loop

	// General structured data
	Fields map[string]interface{}
}
