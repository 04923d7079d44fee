package record

import (
	"fmt"
	"strconv"
	"time"
)

// View is the display projection of a record. It is computed, never stored.
type View struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Cmd      string `json:"cmd"`
	Cwd      string `json:"cwd"`
	PID      string `json:"pid"`
	Running  bool   `json:"running"`
	Restarts string `json:"restarts"`
	Autorun  string `json:"autorun"`
	Age      string `json:"age,omitempty"`
}

// Autorun status labels.
const (
	AutorunDisabled  = "disabled"
	AutorunSuspended = "suspended"
	AutorunEnabled   = "enabled"
)

// NewView projects r for display. running is the caller's liveness verdict;
// started, when non-zero, is when the live process was created.
func NewView(r Record, running bool, started, now time.Time) View {
	v := View{
		ID:       r.ID,
		Name:     r.Name,
		Cmd:      r.Cmd.String(),
		Cwd:      r.Cwd,
		Running:  running,
		Restarts: fmt.Sprintf("%d/%d", max(r.RestartCount, 0), r.MaxRestart),
		Autorun:  AutorunStatus(r),
		PID:      "-",
	}

	switch {
	case running:
		v.PID = strconv.Itoa(r.PID)
	case r.Autorun && !r.AutorunExclude:
		// should be running but is not
		v.PID = "!!!"
	}

	if running && !started.IsZero() {
		v.Age = HumanDuration(now.Sub(started))
	}
	return v
}

// AutorunStatus labels the autorun state of r.
func AutorunStatus(r Record) string {
	switch {
	case !r.Autorun:
		return AutorunDisabled
	case r.AutorunExclude:
		return AutorunSuspended
	default:
		return AutorunEnabled
	}
}

// HumanDuration renders d with its two most significant units, e.g. "3h12m".
func HumanDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	d = d.Truncate(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	mins := d / time.Minute
	secs := (d - mins*time.Minute) / time.Second

	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, mins)
	case mins > 0:
		return fmt.Sprintf("%dm%ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
