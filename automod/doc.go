// Package automod is the moderation core for a chat group whose game only
// permits messages of the filler character 啊. Every inbound update is
// classified into an action (accept, delete, ban, or both); per-user trust
// accumulates in the state store, and a background sweep catches spam
// accounts that evade the per-message checks.
package automod
