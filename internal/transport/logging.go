// SPDX-License-Identifier: MIT
package transport

import "phono/internal/log"

// LoggingTransport writes snapshots to the debug log. Useful when no
// network sink is configured.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	return &LoggingTransport{}
}

func (lt *LoggingTransport) Send(data any) error {
	log.Debugf("monitor: %+v", data)
	return nil
}

func (lt *LoggingTransport) Close() error { return nil }

var _ Transport = (*LoggingTransport)(nil)
