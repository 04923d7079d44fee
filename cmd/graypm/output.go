package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nerrad567/gray-logic-pm/internal/audit"
	"github.com/nerrad567/gray-logic-pm/internal/process"
	"github.com/nerrad567/gray-logic-pm/internal/supervisor"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	childStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("244"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printOutcomes writes one line per outcome and returns errReported when any
// of them is an error. Warnings do not change the exit status.
func printOutcomes(w io.Writer, outs []supervisor.Outcome) error {
	if jsonOutput {
		if err := printJSON(w, outs); err != nil {
			return err
		}
	} else {
		for _, o := range outs {
			fmt.Fprintln(w, formatOutcome(o))
		}
	}
	for _, o := range outs {
		if o.Failed() {
			return errReported
		}
	}
	return nil
}

func formatOutcome(o supervisor.Outcome) string {
	label := fmt.Sprintf("[%s]", o.Code)
	subject := o.Name
	if o.ID >= 0 {
		subject = fmt.Sprintf("%d:%s", o.ID, o.Name)
	}
	line := severityStyle(string(o.Severity)).Render(label) + " " + o.Op + " " + subject
	if o.Message != "" {
		line += ": " + o.Message
	}
	if len(o.Alive) > 0 {
		line += fmt.Sprintf(" (still alive: %v)", o.Alive)
	}
	return line
}

func renderTable(headers []string, rows [][]string, child func(row int) bool) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case child != nil && child(row):
				return childStyle
			default:
				return cellStyle
			}
		})
	return t.String()
}

func listTable(entries []supervisor.Entry) string {
	headers := []string{"id", "name", "pid", "restarts", "autorun", "age", "cwd", "cmd"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		v := e.View
		rows = append(rows, []string{
			strconv.Itoa(v.ID), v.Name, v.PID, v.Restarts, v.Autorun, orDash(v.Age), v.Cwd, truncate(v.Cmd, 60),
		})
	}
	return renderTable(headers, rows, nil)
}

func statusTable(rows []supervisor.StatusRow) string {
	headers := []string{"id", "name", "pid", "cpu%", "mem%", "rss", "files", "threads", "restarts", "age"}
	var out [][]string
	var children []bool
	for _, r := range rows {
		v := r.View
		cells := []string{strconv.Itoa(v.ID), v.Name, v.PID, "-", "-", "-", "-", "-", v.Restarts, orDash(v.Age)}
		if r.Metrics != nil {
			fillMetrics(cells, *r.Metrics)
		}
		out = append(out, cells)
		children = append(children, false)

		for _, c := range r.Children {
			cells := []string{"", "└ " + truncate(strings.Join(c.Cmdline, " "), 30), strconv.Itoa(c.PID), "", "", "", "", "", "", ""}
			fillMetrics(cells, c)
			out = append(out, cells)
			children = append(children, true)
		}
	}
	return renderTable(headers, out, func(row int) bool {
		return row >= 0 && row < len(children) && children[row]
	})
}

func fillMetrics(cells []string, m process.Metrics) {
	cells[3] = fmt.Sprintf("%.1f", m.CPUPercent)
	cells[4] = fmt.Sprintf("%.1f", m.MemoryPercent)
	cells[5] = humanBytes(m.RSSBytes)
	cells[6] = strconv.Itoa(m.OpenFiles)
	cells[7] = strconv.Itoa(m.Threads)
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// historyTimeLayout is the local time shown by `graypm history`.
const historyTimeLayout = "2006-01-02 15:04:05"

func historyTable(logs []audit.AuditLog) string {
	headers := []string{"time", "op", "code", "id", "name", "pid", "message"}
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		pid := "-"
		if l.PID > 0 {
			pid = strconv.Itoa(l.PID)
		}
		rows = append(rows, []string{
			l.CreatedAt.Local().Format(historyTimeLayout), l.Op, severityStyle(l.Severity).Render(l.Code),
			strconv.Itoa(l.RecordID), orDash(l.Name), pid, truncate(l.Message, 60),
		})
	}
	return renderTable(headers, rows, nil)
}

func severityStyle(severity string) lipgloss.Style {
	switch supervisor.Severity(severity) {
	case supervisor.SeverityError:
		return errorStyle
	case supervisor.SeverityWarning:
		return warningStyle
	default:
		return okStyle
	}
}
