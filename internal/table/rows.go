package table

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-pm/internal/record"
)

const selectColumns = `
	SELECT id, name, cmd, cmd_is_argv, cwd, interpreter, shell, nohup,
		stdout, stderr, pid, restart_count, max_restart, autorun, autorun_exclude,
		created_at, updated_at
	FROM processes`

func queryRecords(ctx context.Context, tx *sql.Tx, where string, args ...any) ([]record.Record, error) {
	rows, err := tx.QueryContext(ctx, selectColumns+" "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("querying processes: %w", err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating processes: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (record.Record, error) {
	var (
		r                record.Record
		cmd              string
		isArgv           bool
		created, updated string
	)
	err := rows.Scan(&r.ID, &r.Name, &cmd, &isArgv, &r.Cwd, &r.Interpreter, &r.Shell, &r.Nohup,
		&r.Stdout, &r.Stderr, &r.PID, &r.RestartCount, &r.MaxRestart, &r.Autorun, &r.AutorunExclude,
		&created, &updated)
	if err != nil {
		return record.Record{}, fmt.Errorf("scanning process row: %w", err)
	}

	r.Cmd, err = decodeCommand(cmd, isArgv)
	if err != nil {
		return record.Record{}, fmt.Errorf("decoding cmd of record %d: %w", r.ID, err)
	}
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return r, nil
}

func insertRow(ctx context.Context, tx *sql.Tx, r record.Record) error {
	cmd, isArgv, err := encodeCommand(r.Cmd)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO processes (
			id, name, cmd, cmd_is_argv, cwd, interpreter, shell, nohup,
			stdout, stderr, pid, restart_count, max_restart, autorun, autorun_exclude,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, cmd, isArgv, r.Cwd, r.Interpreter, r.Shell, r.Nohup,
		r.Stdout, r.Stderr, r.PID, r.RestartCount, r.MaxRestart, r.Autorun, r.AutorunExclude,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting record %d: %w", r.ID, err)
	}
	return nil
}

func updateRow(ctx context.Context, tx *sql.Tx, r record.Record) (bool, error) {
	cmd, isArgv, err := encodeCommand(r.Cmd)
	if err != nil {
		return false, err
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE processes SET
			name = ?, cmd = ?, cmd_is_argv = ?, cwd = ?, interpreter = ?, shell = ?, nohup = ?,
			stdout = ?, stderr = ?, pid = ?, restart_count = ?, max_restart = ?,
			autorun = ?, autorun_exclude = ?, updated_at = ?
		WHERE id = ?`,
		r.Name, cmd, isArgv, r.Cwd, r.Interpreter, r.Shell, r.Nohup,
		r.Stdout, r.Stderr, r.PID, r.RestartCount, r.MaxRestart,
		r.Autorun, r.AutorunExclude, formatTime(r.UpdatedAt),
		r.ID)
	if err != nil {
		return false, fmt.Errorf("updating record %d: %w", r.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

func encodeCommand(c record.Command) (string, bool, error) {
	if !c.IsArgv() {
		return c.Line, false, nil
	}
	data, err := json.Marshal(c.Argv)
	if err != nil {
		return "", false, fmt.Errorf("encoding argv: %w", err)
	}
	return string(data), true, nil
}

func decodeCommand(s string, isArgv bool) (record.Command, error) {
	if !isArgv {
		return record.Line(s), nil
	}
	var argv []string
	if err := json.Unmarshal([]byte(s), &argv); err != nil {
		return record.Command{}, err
	}
	return record.Argv(argv...), nil
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s) //nolint:errcheck // format is controlled by formatTime
	return t
}
