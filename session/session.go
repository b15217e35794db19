// Package session holds the in-memory authenticated state of a Classeviva
// client and its durable on-disk snapshot.
//
// The two are deliberately distinct: a Session is what the client consults on
// every call, while a Record is the raw login response persisted between
// process restarts. A Record is only ever adopted when its expiry is still in
// the future; stale records are ignored, not deleted.
package session

import "time"

// Session is the in-memory authenticated state: an opaque bearer token and
// its absolute expiry.
type Session struct {
	Token  string    // Opaque bearer token, sent as Z-Auth-Token
	Expiry time.Time // Absolute expiry reported by the login endpoint
}

// Authorized reports whether the session can still be used: a non-empty
// token whose expiry is strictly in the future of now.
func (s Session) Authorized(now time.Time) bool {
	return s.Token != "" && s.Expiry.After(now)
}
