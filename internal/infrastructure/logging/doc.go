// Package logging provides structured logging built on zap.
//
// Production output is JSON to stdout; development output is colored
// console lines with stacktraces enabled. Components receive a *Logger
// at construction and derive named children rather than importing a
// global.
package logging
