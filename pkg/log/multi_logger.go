package log

// MultiLogger fans each event out to several sinks. The server runs
// one of these when both the console adapter and the on-disk audit
// trail are configured: operators watch decisions live while the
// CBOR file keeps the replayable record.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger over the given sinks.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log delivers the event to every sink, in registration order.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
