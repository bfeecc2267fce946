// Package web bundles the back office templates and static assets into the binary.
package web

import "embed"

// TemplatesFS holds the page and partial templates (index, panel, simulation, quote).
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.css and app.js.
//
//go:embed static/*
var StaticFS embed.FS
