// Package service wires the protocol layers into the controller's
// behavior: it takes decoded inbound messages, drives the validation
// pipeline and the turnstile state machine, and produces the response
// messages to send back to the device.
//
// The handler is transport-agnostic. The server binary plugs it into
// the transport callbacks; tests call it directly with messages.
package service
