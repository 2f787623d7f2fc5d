package web

import "embed"

// Templates holds the console layout, partials and pages, including the
// invoice print page rendered to PDF.
//
//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*.html
var Templates embed.FS

// Static holds the stylesheet served under /static.
//
//go:embed static/css
var Static embed.FS
