// Package filesystem provides the filesystem handles used by userprov.
//
// Every component takes an afero.Fs so the same code runs against the real
// disk in production and an in-memory filesystem in tests.
package filesystem
