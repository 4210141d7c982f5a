// SPDX-License-Identifier: Apache-2.0

package world

import (
	"fmt"
	"sort"
	"strings"
)

// RenderOverlay renders a world overlay record as stable prompt text. Pure
// function; used for the bridge backend's pushed snapshot.
func RenderOverlay(overlay map[string]any) string {
	if len(overlay) == 0 {
		return "(empty world)"
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, overlay[k])
	}
	return b.String()
}
