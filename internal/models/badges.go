// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package models

import "fmt"

// Platform describes a review source for badge rendering.
type Platform struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Platforms is the badge catalog, keyed by source tag. Sources without an
// entry (generic, import) render no badge.
var Platforms = map[string]Platform{
	"google":   {Key: "google", Label: "Google", Color: "#4285F4"},
	"yelp":     {Key: "yelp", Label: "Yelp", Color: "#FF1A1A"},
	"angi":     {Key: "angi", Label: "Angi", Color: "#FF6153"},
	"facebook": {Key: "facebook", Label: "Facebook", Color: "#1877F2"},
}

// BadgeHTML returns the precomputed badge snippet for a platform, or the
// empty string for unknown sources.
func BadgeHTML(source string) string {
	p, ok := Platforms[source]
	if !ok {
		return ""
	}
	return fmt.Sprintf(`<div class="platform-badge" style="background-color:%s">%s</div>`, p.Color, p.Label)
}

// PlatformLabel returns the display label for a source, or the empty string.
func PlatformLabel(source string) string {
	if p, ok := Platforms[source]; ok {
		return p.Label
	}
	return ""
}
