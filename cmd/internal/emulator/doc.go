// Package emulator is a local stand-in for the hosted identity and JSON store endpoints.
//
// It speaks the subset of the wire format the client uses: email/password sign-up and
// sign-in under /v1/accounts, and whole-collection GET/PUT under /<name>.json guarded by
// an ?auth=<idToken> parameter. Accounts live in memory; collections live in memory or Redis.
package emulator
