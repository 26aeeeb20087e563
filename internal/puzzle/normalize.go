// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

package puzzle

import "strings"

// Normalize lowercases s and drops every character outside [a-z0-9], so that
// "The Legend of Zelda: Breath of the Wild" and "legend of zelda breath of
// the wild!" compare by their letters and digits only.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
