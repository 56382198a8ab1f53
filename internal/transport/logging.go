// SPDX-License-Identifier: MIT
package transport

import (
	"cymatics/internal/frame"
	applog "cymatics/internal/log"
)

// LoggingTransport implements the Transport interface by logging frame labels
// at debug level.
type LoggingTransport struct {
	log *applog.Logger
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{log: applog.Component("transport")}
	lt.log.Infof("Using LoggingTransport")
	return lt
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	switch v := data.(type) {
	case frame.Frame:
		lt.log.Debugf("frame %d at %.3fs: %s", v.Index, v.Time, v.Label())
	case Message:
		lt.log.Debugf("frame %d at %.3fs: %s", v.Index, v.Time, v.Label)
	default:
		lt.log.Debugf("received (%T): %+v", data, data)
	}
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.log.Debugf("Close called")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
