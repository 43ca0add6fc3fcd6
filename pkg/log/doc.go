// Package log provides structured protocol event logging for the REON
// access-control stack.
//
// Every layer emits Event values through the Logger interface: raw
// frames at the transport layer, decoded messages at the protocol
// layer, and access decisions and turnstile state changes at the
// service layer. Applications choose the sink:
//
//   - FileLogger writes events to a file in compact CBOR form,
//     suitable for later replay and auditing.
//   - SlogAdapter forwards events to a log/slog logger for console
//     output during development.
//   - MultiLogger fans events out to several sinks at once.
//   - NoopLogger discards everything.
//
// Logging must never disrupt the data path: sinks swallow their own
// errors and implementations are safe for concurrent use.
package log
