// Package ids mints ULID primary keys.
package ids

import "github.com/oklog/ulid/v2"

// New returns a fresh ULID string. Values sort lexicographically by creation
// time, which keeps index pages append-mostly.
func New() string {
	return ulid.Make().String()
}
