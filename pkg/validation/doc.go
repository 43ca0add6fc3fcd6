// Package validation decides access requests.
//
// Two strategies implement the Validator interface. The offline
// validator answers from the local registry, running a fixed sequence
// of checks (credential known, active, valid; user known, active,
// valid; method permitted; anti-passback) and stopping at the first
// failure. The online validator forwards the request to a remote
// authority with a bounded timeout and a retry budget, and falls back
// to the offline validator exactly once when the authority cannot be
// reached.
//
// Every decision carries the display text shown on the turnstile. The
// deny messages are fixed per failed check; grants always display
// "Acesso liberado". A denied swipe never reaches the access log as a
// passage; only grants feed the anti-passback history.
package validation
