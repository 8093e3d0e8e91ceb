// Package copytree implements the merge-copy primitive behind provisioning.
//
// A merge-copy walks a source tree and replicates it under a destination:
//
//   - missing destination directories are created, existing ones are reused
//   - files are copied byte for byte and replace same-named destination files
//   - permission bits and the modification time of each source file are
//     applied to its copy, so repeated runs leave identical trees
//   - destination content that has no counterpart in the source is kept
//
// Symbolic links in the source are followed and their targets copied. A
// symbolic link already sitting at a destination file path is replaced by a
// regular file rather than written through.
package copytree
