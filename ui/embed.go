// Package ui holds the HTML views, email bodies and static assets.
package ui

import "embed"

//go:embed views email static
var Files embed.FS
