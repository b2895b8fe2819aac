package web

import "embed"

// StaticFS embeds the status page and its assets.
//
//go:embed static/*
var StaticFS embed.FS
