// Package influxdb stores process metric history in InfluxDB v2.
//
// When enabled, the daemon samples every running record on a fixed
// interval and writes two measurements:
//   - process: cpu_percent, memory_percent, rss_bytes, open_files, threads
//     and pid, tagged by record id and name
//   - process_children: count of descendant processes
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteProcessSample(3, "web", metrics)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Asynchronous write errors are delivered to the callback set
// with SetOnError. Connection and health check errors are returned directly.
package influxdb
