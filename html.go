/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strconv"
)

const siPrefixes = "kMGTPE"

// humanReadableSize formats n bytes with SI prefixes, e.g. "1.2 kB".
func humanReadableSize(n int64) string {
	if n < 1000 {
		return strconv.FormatInt(n, 10) + " B"
	}

	size := float64(n) / 1000
	prefix := 0
	for size >= 1000 && prefix < len(siPrefixes)-1 {
		size /= 1000
		prefix++
	}

	return fmt.Sprintf("%.1f %cB", size, siPrefixes[prefix])
}
