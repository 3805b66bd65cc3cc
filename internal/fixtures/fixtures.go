// Package fixtures embeds the default simulator data set.
//
// The tree has the layout the simulator expects: scenarios/<name>.{json,yaml}
// and datasets/<name>.json.
package fixtures

import "embed"

// FS holds scenarios/ and datasets/.
//
//go:embed scenarios datasets
var FS embed.FS
