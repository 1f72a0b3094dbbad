package metadata

import "fmt"

// ParseError reports a metadata line that does not hold exactly three
// non-empty fields
type ParseError struct {
	Path string
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: malformed metadata line %q: want %d non-empty %q separated fields", e.Path, e.Line, e.Text, fieldCount, Delimiter)
}

// DelimiterError reports a field that contains the delimiter or a line break.
// It means the environment produced paths or identifiers the format cannot
// carry, and is never recoverable.
type DelimiterError struct {
	Field string
	Value string
}

func (e *DelimiterError) Error() string {
	return fmt.Sprintf("metadata %s %q contains a reserved character (%q or line break)", e.Field, e.Value, Delimiter)
}
