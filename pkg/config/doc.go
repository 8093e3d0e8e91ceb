// Package config handles configuration management for userprov.
//
// Configuration is layered, later layers winning:
//
//  1. embedded defaults (embedded/defaults.toml)
//  2. a TOML file: the one passed explicitly, or userprov.toml /
//     .userprov.toml in the working directory
//  3. USERPROV_ environment variables
//  4. command-line overrides
package config
