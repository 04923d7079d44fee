package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nerrad567/gray-logic-pm/internal/record"
)

// Paths of the helpers placed in front of a command.
const (
	ShellPath = "/bin/sh"
	NohupPath = "/usr/bin/nohup"
)

// ErrExecutableNotFound is returned when a command's program cannot be resolved.
var ErrExecutableNotFound = errors.New("executable not found")

// BuildArgv turns a record into the argument vector to execute.
//
// The command is split on whitespace unless it is already a vector. The
// interpreter is prepended when set and present on disk. Shell mode hands
// the whole command to /bin/sh -c. Detached records are wrapped in nohup
// unless the command already starts with it.
func BuildArgv(r record.Record) []string {
	argv := r.Cmd.Fields()
	if len(argv) == 0 {
		return nil
	}

	interp := ""
	if r.Interpreter != "" && fileExists(r.Interpreter) {
		interp = r.Interpreter
	}

	if r.Shell {
		script := r.Cmd.Line
		if r.Cmd.IsArgv() {
			script = shellJoin(r.Cmd.Argv)
		}
		if interp != "" {
			script = shellQuote(interp) + " " + script
		}
		argv = []string{ShellPath, "-c", script}
	} else if interp != "" {
		argv = append([]string{interp}, argv...)
	}

	if r.Nohup && !strings.Contains(filepath.Base(argv[0]), "nohup") {
		argv = append([]string{NohupPath}, argv...)
	}
	return argv
}

// resolveExecutable checks that the program that will actually run exists,
// looking through a nohup wrapper. Relative paths are resolved against dir.
func resolveExecutable(argv []string, dir string) error {
	name := argv[0]
	if strings.Contains(filepath.Base(name), "nohup") && len(argv) > 1 {
		if err := lookup(name, dir); err != nil {
			return err
		}
		name = argv[1]
	}
	return lookup(name, dir)
}

func lookup(name, dir string) error {
	if !strings.Contains(name, "/") {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
		}
		return nil
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
		return fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// shellQuote wraps s in single quotes unless it is made only of safe bytes.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r == '/' || r == '.' || r == '-' || r == '_' || r == '=' || r == ':' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
