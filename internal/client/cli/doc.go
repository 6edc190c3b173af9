// Package cli provides the interactive commissioning client.
//
// It wires configuration, the local store, the sync services and a REPL
// that keeps working without a connection. Edits are committed locally by
// the autosave coordinator and pushed in the background while signed in; a
// connectivity watcher starts live sync when the server becomes reachable
// and stops it when the server goes away.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher and runREPL for details.
package cli
