// Package types defines the records shared by the userprov packages: the
// user list entries read at startup and the summary produced by a
// provisioning run.
package types
