// Package protocol implements the REON device protocol grammar.
//
// REON is the ASCII command protocol spoken by access-control turnstiles
// and readers. A message has the textual form:
//
//	<device-id>+REON+<command-code>]field1]field2]
//
// where <device-id> is a two-digit zero-padded number in [1, 99],
// <command-code> is one of a closed set of canonical codes (some of
// which contain internal '+' characters, e.g. "000+0"), and each field
// is preceded by ']' with a single trailing ']' closing the field list.
// A message with zero fields has no ']' at all.
//
// Examples:
//
//	01+REON+RQ
//	15+REON+000+0]12345678]10/05/2025 12:46:06]1]0]
//	15+REON+00+6]5]Acesso liberado]
//
// The characters ']', '+' and '[' are structural and must not appear
// inside field content. Field content is otherwise opaque ASCII text.
//
// This package covers the textual grammar only. The binary frame
// envelope (start/end markers, integrity value) lives in pkg/transport.
package protocol
