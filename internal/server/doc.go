// Package server composes the application: configuration, the SSH
// session pool, the workspace executor, the command router, the HTTP
// surface and the background cron jobs.
package server
