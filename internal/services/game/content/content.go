// Package content embeds the default scenario and game configuration
// shipped with the binary. A content directory on disk can override it.
package content

import "embed"

//go:embed *.yaml
var FS embed.FS
