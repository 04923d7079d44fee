package record

import "errors"

var (
	// ErrEmptyCommand indicates a definition without a command.
	ErrEmptyCommand = errors.New("record: command is required")

	// ErrEmptyName indicates that no usable name could be derived.
	ErrEmptyName = errors.New("record: name is empty after sanitizing")

	// ErrRelativeCwd indicates a relative cwd with no absolute default to
	// resolve it against.
	ErrRelativeCwd = errors.New("record: cwd must resolve to an absolute path")

	// ErrInvalidID indicates a negative explicit id.
	ErrInvalidID = errors.New("record: invalid id")
)
