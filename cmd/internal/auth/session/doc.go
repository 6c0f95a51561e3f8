// Package session implements the client-side session lifecycle.
//
// A Manager owns the current Session (identity, token, expiry), persists it under a fixed
// storage key so it survives restarts, arms an expiry timer, and publishes every change
// through a broadcast.Slot. Sessions are never refreshed: once the expiry passes the user
// must sign in again.
//
// States are Anonymous and Authenticated. Login/Signup and a successful Restore move to
// Authenticated; Logout and the expiry timer move back to Anonymous.
package session
