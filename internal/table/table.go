package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/nerrad567/gray-logic-pm/internal/record"
)

const (
	// lockRetryDelay is how often a blocked caller retries the advisory lock.
	lockRetryDelay = 20 * time.Millisecond

	// reservationTTL bounds how long an id returned by NextID stays reserved.
	reservationTTL = 10 * time.Minute

	lockDirPermissions = 0750
)

// InsertCode is the outcome of Insert.
type InsertCode string

const (
	// Created means the record was stored under its requested or assigned name.
	Created InsertCode = "created"
	// IDConflict means another record holds the id and rewrite was false.
	// Nothing was stored.
	IDConflict InsertCode = "id_conflict"
	// NameConflict means the name was taken and rewrite was false. The
	// record was stored with its name suffixed by its id.
	NameConflict InsertCode = "name_conflict"
)

// InsertResult reports what Insert did.
type InsertResult struct {
	Code InsertCode
	// Record is the stored record (or, on IDConflict, the rejected one with
	// its id assigned).
	Record record.Record
	// Replaced lists the ids of records overwritten because of rewrite.
	Replaced []int
}

// Options configures a Table.
type Options struct {
	// LockPath is the advisory lock file shared by every process using the table.
	LockPath string
	// LogDir is where default stdout/stderr paths point.
	LogDir string
}

// Table is the SQLite-backed process table.
//
// Thread Safety: safe for concurrent use by goroutines and by other
// processes opening the same database and lock file.
type Table struct {
	db       *sql.DB
	lockPath string
	logDir   string
	now      func() time.Time
}

// New returns a Table over an open, migrated database.
func New(db *sql.DB, opts Options) (*Table, error) {
	if opts.LockPath == "" {
		return nil, fmt.Errorf("table: lock path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.LockPath), lockDirPermissions); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	return &Table{
		db:       db,
		lockPath: opts.LockPath,
		logDir:   opts.LogDir,
		now:      time.Now,
	}, nil
}

// LogDir returns the directory used for default log paths.
func (t *Table) LogDir() string { return t.logDir }

// locked runs fn inside a transaction while holding the advisory lock.
// The transaction commits only if fn returns nil.
//
// Each call opens its own lock file descriptor. flock(2) locks belong to the
// open file description, so two goroutines in one process exclude each other
// exactly like two processes do.
func (t *Table) locked(ctx context.Context, fn func(tx *sql.Tx) error) error {
	fl := flock.New(t.lockPath)
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}
	if !ok {
		return ErrLockTimeout
	}
	defer fl.Unlock() //nolint:errcheck // closing the descriptor releases the lock regardless

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// NextID returns max(existing ids)+1, or 1 for an empty table, and reserves
// it so a concurrent caller gets a different id.
func (t *Table) NextID(ctx context.Context) (int, error) {
	var id int
	err := t.locked(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = t.nextID(ctx, tx)
		if err != nil {
			return err
		}
		return t.reserve(ctx, tx, id)
	})
	return id, err
}

// NextIDFrom returns the first id >= start that is neither used nor
// reserved, and reserves it.
func (t *Table) NextIDFrom(ctx context.Context, start int) (int, error) {
	var id int
	err := t.locked(ctx, func(tx *sql.Tx) error {
		if err := t.expireReservations(ctx, tx); err != nil {
			return err
		}
		for id = start; ; id++ {
			taken, err := idTaken(ctx, tx, id)
			if err != nil {
				return err
			}
			if !taken {
				break
			}
		}
		return t.reserve(ctx, tx, id)
	})
	return id, err
}

func (t *Table) nextID(ctx context.Context, tx *sql.Tx) (int, error) {
	if err := t.expireReservations(ctx, tx); err != nil {
		return 0, err
	}
	var maxID sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT MAX(id) FROM (
			SELECT id FROM processes
			UNION ALL
			SELECT id FROM id_reservations
		)`).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("querying max id: %w", err)
	}
	if !maxID.Valid {
		return 1, nil
	}
	return int(maxID.Int64) + 1, nil
}

func (t *Table) reserve(ctx context.Context, tx *sql.Tx, id int) error {
	_, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO id_reservations (id, reserved_at) VALUES (?, ?)",
		id, formatTime(t.now()))
	if err != nil {
		return fmt.Errorf("reserving id %d: %w", id, err)
	}
	return nil
}

func (t *Table) expireReservations(ctx context.Context, tx *sql.Tx) error {
	cutoff := formatTime(t.now().Add(-reservationTTL))
	if _, err := tx.ExecContext(ctx, "DELETE FROM id_reservations WHERE reserved_at < ?", cutoff); err != nil {
		return fmt.Errorf("expiring reservations: %w", err)
	}
	return nil
}

func idTaken(ctx context.Context, tx *sql.Tx, id int) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM processes WHERE id = ?)
		     + (SELECT COUNT(*) FROM id_reservations WHERE id = ?)`, id, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking id %d: %w", id, err)
	}
	return n > 0, nil
}

// Find returns the records selected by sel, ordered by id. An id or name that
// matches nothing yields an empty slice, not an error.
func (t *Table) Find(ctx context.Context, sel record.Selector) ([]record.Record, error) {
	var out []record.Record
	err := t.locked(ctx, func(tx *sql.Tx) error {
		var err error
		switch sel.Kind {
		case record.KindID:
			out, err = queryRecords(ctx, tx, "WHERE id = ?", sel.ID)
		case record.KindName:
			out, err = queryRecords(ctx, tx, "WHERE name = ?", sel.Token)
		default:
			var all []record.Record
			all, err = queryRecords(ctx, tx, "")
			out = sel.Filter(all)
		}
		return err
	})
	if out == nil {
		out = []record.Record{}
	}
	return out, err
}

// Get returns the record with the given id, or ErrNotFound.
func (t *Table) Get(ctx context.Context, id int) (record.Record, error) {
	found, err := t.Find(ctx, record.ByID(id))
	if err != nil {
		return record.Record{}, err
	}
	if len(found) == 0 {
		return record.Record{}, ErrNotFound
	}
	return found[0], nil
}

// Insert stores rec. An unassigned id (record.NoID) is replaced by the next
// free id.
//
//   - id taken, !rewrite: IDConflict, nothing stored. This wins over a name
//     conflict.
//   - id taken, rewrite: the existing record is replaced.
//   - name taken by a different non-hidden record, !rewrite: the name gets an
//     "_<id>" suffix and the record is stored (NameConflict).
//   - name taken, rewrite: the record holding the name is replaced.
//
// Default log paths are filled in after the final id and name are known.
func (t *Table) Insert(ctx context.Context, rec record.Record, rewrite bool) (InsertResult, error) {
	res := InsertResult{Code: Created}

	err := t.locked(ctx, func(tx *sql.Tx) error {
		if rec.ID == record.NoID {
			id, err := t.nextID(ctx, tx)
			if err != nil {
				return err
			}
			rec.ID = id
		}

		exists, err := rowExists(ctx, tx, rec.ID)
		if err != nil {
			return err
		}
		if exists {
			if !rewrite {
				res.Code = IDConflict
				return nil
			}
			res.Replaced = append(res.Replaced, rec.ID)
		}

		if !rec.Hidden() {
			name, replaced, conflict, err := resolveName(ctx, tx, rec, rewrite)
			if err != nil {
				return err
			}
			rec.Name = name
			res.Replaced = append(res.Replaced, replaced...)
			if conflict {
				res.Code = NameConflict
			}
		}

		rec.FillLogPaths(t.logDir)
		now := t.now()
		rec.CreatedAt, rec.UpdatedAt = now, now
		if rec.PID == 0 {
			rec.PID = record.NoPID
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM processes WHERE id = ?", rec.ID); err != nil {
			return fmt.Errorf("replacing record %d: %w", rec.ID, err)
		}
		if err := insertRow(ctx, tx, rec); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM id_reservations WHERE id = ?", rec.ID); err != nil {
			return fmt.Errorf("releasing reservation %d: %w", rec.ID, err)
		}
		return nil
	})
	if err != nil {
		return InsertResult{}, err
	}

	res.Record = rec
	return res, nil
}

// resolveName applies the unique-name rule for a non-hidden record.
func resolveName(ctx context.Context, tx *sql.Tx, rec record.Record, rewrite bool) (name string, replaced []int, conflict bool, err error) {
	others, err := idsWithName(ctx, tx, rec.Name, rec.ID)
	if err != nil {
		return "", nil, false, err
	}
	if len(others) == 0 {
		return rec.Name, nil, false, nil
	}

	if rewrite {
		for _, id := range others {
			if _, err := tx.ExecContext(ctx, "DELETE FROM processes WHERE id = ?", id); err != nil {
				return "", nil, false, fmt.Errorf("replacing record %d: %w", id, err)
			}
		}
		return rec.Name, others, false, nil
	}

	name = fmt.Sprintf("%s_%d", rec.Name, rec.ID)
	for i := 2; ; i++ {
		taken, err := idsWithName(ctx, tx, name, rec.ID)
		if err != nil {
			return "", nil, false, err
		}
		if len(taken) == 0 {
			return name, nil, true, nil
		}
		name = fmt.Sprintf("%s_%d_%d", rec.Name, rec.ID, i)
	}
}

func idsWithName(ctx context.Context, tx *sql.Tx, name string, exceptID int) ([]int, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM processes WHERE name = ? AND id != ?", name, exceptID)
	if err != nil {
		return nil, fmt.Errorf("querying name %q: %w", name, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func rowExists(ctx context.Context, tx *sql.Tx, id int) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM processes WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("checking id %d: %w", id, err)
	}
	return n > 0, nil
}

// Update overwrites the stored record with rec's id. It reports whether such
// a record existed; a missing record is not an error.
func (t *Table) Update(ctx context.Context, rec record.Record) (bool, error) {
	var found bool
	err := t.locked(ctx, func(tx *sql.Tx) error {
		rec.UpdatedAt = t.now()
		var err error
		found, err = updateRow(ctx, tx, rec)
		return err
	})
	return found, err
}

// Modify reads the record with the given id, applies fn and writes the result
// back, all under one lock. fn must not change the id. Returns ErrNotFound
// if no record has the id; an error from fn aborts without writing.
func (t *Table) Modify(ctx context.Context, id int, fn func(*record.Record) error) (record.Record, error) {
	var out record.Record
	err := t.locked(ctx, func(tx *sql.Tx) error {
		found, err := queryRecords(ctx, tx, "WHERE id = ?", id)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return ErrNotFound
		}
		rec := found[0]
		if err := fn(&rec); err != nil {
			return err
		}
		rec.ID = id
		rec.UpdatedAt = t.now()
		if _, err := updateRow(ctx, tx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

// Delete removes the record with rec's id and reports whether it existed.
func (t *Table) Delete(ctx context.Context, rec record.Record) (bool, error) {
	var found bool
	err := t.locked(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM processes WHERE id = ?", rec.ID)
		if err != nil {
			return fmt.Errorf("deleting record %d: %w", rec.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		found = n > 0
		return nil
	})
	return found, err
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
