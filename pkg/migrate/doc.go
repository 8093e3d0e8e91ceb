// Package migrate copies the user list into the MySQL account table used
// by the authentication service.
//
// Each record is upserted by username: new users are inserted, existing
// ones get their password hash, email, full name and visibility replaced.
// Usernames are stored lowercased. A failing record is logged and counted
// and the remaining records are still processed.
package migrate
