package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-pm/internal/process"
)

// Measurement names written by the daemon.
const (
	measurementProcess = "process"
	measurementChild   = "process_children"
)

// WriteProcessSample records one metrics sample of a supervised process.
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteProcessSample(id int, name string, m process.Metrics) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(processPoint(id, name, m, time.Now()))
	c.writeAPI.WritePoint(childrenPoint(id, name, len(m.Children), time.Now()))
}

// processPoint builds the point for one sample. Tags stay low-cardinality:
// the record id and name, never the pid.
func processPoint(id int, name string, m process.Metrics, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementProcess,
		map[string]string{
			"id":   strconv.Itoa(id),
			"name": name,
		},
		map[string]interface{}{
			"pid":            m.PID,
			"cpu_percent":    m.CPUPercent,
			"memory_percent": m.MemoryPercent,
			"rss_bytes":      int64(m.RSSBytes), //nolint:gosec // RSS fits comfortably in int64
			"open_files":     m.OpenFiles,
			"threads":        m.Threads,
		},
		ts,
	)
}

func childrenPoint(id int, name string, n int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementChild,
		map[string]string{"id": strconv.Itoa(id), "name": name},
		map[string]interface{}{"count": n},
		ts,
	)
}
