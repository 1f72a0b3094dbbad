package utils

import (
	"strconv"
	"strings"
)

// LauncherPrefix is the name prefix of every generator launcher
const LauncherPrefix = "Generator_"

// LauncherName returns the name of the launcher at the given zero-based
// position in the configured target list (Generator_0, Generator_1, ...)
func LauncherName(index int) string {
	return LauncherPrefix + strconv.Itoa(index)
}

// ParseList splits a comma separated flag value into trimmed, non-empty items
func ParseList(s string) []string {
	items := make([]string, 0)

	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}

	return items
}

// PackagePath turns a dotted package name into a relative directory path
// (com.example.api -> com/example/api)
func PackagePath(pkg string) string {
	parts := ParseList(strings.ReplaceAll(pkg, ".", ","))
	return strings.Join(parts, "/")
}
