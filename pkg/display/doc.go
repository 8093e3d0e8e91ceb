// Package display renders command results for the terminal: the
// per-user provisioning table, copy events and migration results.
package display
