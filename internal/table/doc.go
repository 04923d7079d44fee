// Package table is the durable process table.
//
// Records live in SQLite. Every operation runs inside one transaction while
// holding an exclusive advisory lock on a lock file (gofrs/flock), so the
// daemon and independent CLI invocations see each read-modify-write sequence
// as a single step: ids handed out by NextID or Insert never collide and
// concurrent updates are not lost.
//
// Usage:
//
//	tbl, err := table.New(db.DB, table.Options{LockPath: cfg.Table.LockFile, LogDir: cfg.LogDir()})
//	res, err := tbl.Insert(ctx, rec, false)
//	found, err := tbl.Find(ctx, record.ParseSelector("all"))
package table
