// Package authority implements the host-to-authority leg of access
// validation: a small binary protocol carrying one access request out
// to a central authority and one decision back.
//
// Unlike the device leg, this leg is host software on both ends, so it
// uses CBOR maps with integer keys over 4-byte big-endian
// length-prefixed frames instead of the ASCII device grammar.
//
// The Client implements validation.AuthorityClient. It holds one
// connection and closes it on any error or timeout, so a reply that
// arrives after its call was abandoned is never read as the answer to
// a later call. The Server wraps any validation.Validator, which is
// usually the offline validator running against the central registry.
package authority
