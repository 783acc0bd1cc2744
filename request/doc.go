// Package request adapts the friend-request subsystem spec.md §6
// describes as "consumed": a filter function that rejects duplicates and
// an inbound delivery path to the application, decoupled from the
// friend.Roster it protects so it can be unit tested without a real
// transport.
package request
