// ABOUTME: Embedded goose migrations for the local state database
// ABOUTME: Applied on every Open so older state files are upgraded in place

package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
