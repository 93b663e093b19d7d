package util

import "strings"

const maxFilenameLen = 100

var filenameReplacer = strings.NewReplacer(
	"（", "(",
	"）", ")",
	"<", "_",
	">", "_",
	":", "_",
	`"`, "_",
	"/", "_",
	`\`, "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// SanitizeFilename makes a case name safe to use as a file name on both
// Windows and Unix: fullwidth parentheses are normalized, reserved
// characters become underscores, and the result is trimmed and capped at
// 100 runes.
func SanitizeFilename(name string) string {
	name = filenameReplacer.Replace(name)
	name = strings.Trim(name, " .")
	if r := []rune(name); len(r) > maxFilenameLen {
		name = string(r[:maxFilenameLen])
	}
	return name
}
