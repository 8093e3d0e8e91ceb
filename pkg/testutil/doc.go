// Package testutil provides helpers shared by the userprov tests.
//
// Two flavours of helper live here:
//   - disk helpers (CreateFile, CreateSymlink, ...) for tests that need a real
//     filesystem, e.g. to observe modification times or permissions
//   - afero helpers (WriteTree, ReadTree) that build and snapshot whole
//     trees on any afero.Fs, usually an in-memory one
//
// Test data is defined inline; each test builds its own isolated tree.
package testutil
