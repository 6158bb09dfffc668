// Package appfs exposes the embedded static assets: goose migrations and
// email templates.
package appfs

import "embed"

//go:embed migrations templates templates/email/_base.txt templates/email/_base.gohtml
var FS embed.FS
