// SPDX-License-Identifier: MIT
/*
Package transport provides sinks for playback telemetry snapshots. All
implementations are safe for concurrent use and drop data rather than block
when a sink cannot keep up.
*/
package transport

// Transport delivers telemetry snapshots to an external consumer.
type Transport interface {
	Send(data any) error
	Close() error
}
