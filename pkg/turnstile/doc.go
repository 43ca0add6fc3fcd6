// Package turnstile tracks the mechanical rotation cycle of each
// connected turnstile.
//
// A turnstile is released by a grant, then either reports a completed
// rotation or times out waiting for the user to push through. The
// package models this as a per-device state machine:
//
//	              Grant
//	  ┌──────┐ ─────────────► ┌─────────────────┐
//	  │ Idle │                │ WaitingRotation │
//	  └──────┘ ◄───────┐      └─────────────────┘
//	      ▲            │        │           │
//	      │ Reset      │    Complete     Timeout
//	      │            │        ▼           ▼
//	  ┌───────────────────┐   ┌───────────────────┐
//	  │ RotationCompleted │   │ RotationTimeout   │
//	  └───────────────────┘   └───────────────────┘
//
// Any transition outside this table is rejected with
// ErrInvalidTransition. The Machine tracks every device the server has
// seen; devices start in Idle.
//
// The Timer arms a per-device deadline when a grant is issued. If the
// device never reports the rotation outcome (lost frame, powered-off
// turnstile), the timer fires and the owner can force the device back
// to Idle so the lane is not stuck.
package turnstile
