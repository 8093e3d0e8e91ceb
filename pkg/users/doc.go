// Package users loads the user list that drives a provisioning run.
//
// The list is an ordered array of records, each with at least a username:
//
//	[ { "username": "alice" }, { "username": "bob", "email": "bob@example.com" } ]
//
// JSON is the default format. Files ending in .yaml/.yml are read as YAML
// and files ending in .toml are read as a TOML document with a `users`
// array of tables. Unknown fields are ignored.
package users
