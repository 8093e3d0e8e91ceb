// Package provision copies the template tree into one directory per user.
//
// A run moves through Loading, then Provisioning for each user in list
// order, and ends Done or Failed. Nothing is written before the user list
// and the template root have been validated, so a malformed list leaves
// the filesystem untouched.
//
// By default the first filesystem error ends the run. With
// Options.ContinueOnError the failure is recorded on that user's result and
// the remaining users are still provisioned; the run then returns a single
// FILESYSTEM error listing every failed user.
package provision
