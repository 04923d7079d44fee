package record

import (
	"encoding/json"
	"errors"
	"strings"
)

// Command is the program a record runs. It is either a single command line,
// split on whitespace at spawn time, or an explicit argument vector.
// Exactly one of Line and Argv is set.
type Command struct {
	Line string
	Argv []string
}

// Line returns a Command from a command line string.
func Line(s string) Command { return Command{Line: s} }

// Argv returns a Command from an explicit argument vector.
func Argv(args ...string) Command { return Command{Argv: append([]string(nil), args...)} }

// IsArgv reports whether the command was given as an argument vector.
func (c Command) IsArgv() bool { return c.Argv != nil }

// IsZero reports whether no command was given.
func (c Command) IsZero() bool { return len(c.Fields()) == 0 }

// Fields returns the argument vector to execute. The result is a fresh slice.
func (c Command) Fields() []string {
	if c.IsArgv() {
		return append([]string(nil), c.Argv...)
	}
	return strings.Fields(c.Line)
}

// String renders the command for display and logging.
func (c Command) String() string {
	if c.IsArgv() {
		return strings.Join(c.Argv, " ")
	}
	return c.Line
}

// MarshalJSON encodes the command as a JSON string or array, mirroring how it
// was given.
func (c Command) MarshalJSON() ([]byte, error) {
	if c.IsArgv() {
		return json.Marshal(c.Argv)
	}
	return json.Marshal(c.Line)
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (c *Command) UnmarshalJSON(data []byte) error {
	var line string
	if err := json.Unmarshal(data, &line); err == nil {
		*c = Command{Line: line}
		return nil
	}
	var argv []string
	if err := json.Unmarshal(data, &argv); err != nil {
		return errors.New("cmd must be a string or an array of strings")
	}
	if argv == nil {
		argv = []string{}
	}
	*c = Command{Argv: argv}
	return nil
}
