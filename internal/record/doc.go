// Package record defines the persisted description of one supervised process,
// the selector grammar used to address records, and a read-only display
// projection.
//
// Record is plain data. Nothing in this package touches the OS or the table;
// liveness lives in internal/process and storage in internal/table.
package record
