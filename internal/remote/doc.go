// Package remote executes commands and file operations on SSH-reachable
// targets through a pool of reusable sessions.
//
// The pool keeps one session per target. Sessions are replaced when
// their transport drops or when they exceed a configured age, and
// commands that die with the transport are retried once on a fresh
// connection. Everything above the Transport interface is
// protocol-agnostic; the production transport rides x/crypto/ssh.
package remote
