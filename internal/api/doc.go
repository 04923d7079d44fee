// Package api implements the local HTTP control surface of the graypm daemon.
//
// This package provides:
//   - REST endpoints mirroring the supervisor operations (ping, create, list,
//     status, start/stop/restart/reset/rm)
//   - The lifecycle history (GET /api/v1/history)
//   - A Prometheus scrape endpoint with per-record gauges and outcome counters
//   - Middleware stack (request ID, logging, recovery, body size limit)
//   - A typed Client used by the CLI
//
// # Architecture
//
// The CLI talks to the daemon over loopback HTTP. Every lifecycle request is
// answered with the list of per-record outcomes produced by the supervisor;
// warnings and errors are data, so a request that starts nothing still
// returns 200 with outcomes explaining why.
//
// # Security
//
// The server binds to 127.0.0.1 by default and has no authentication. It
// must not be exposed beyond the host.
package api
