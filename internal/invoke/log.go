package invoke

import "fmt"

// maxLogBodyLen caps how much of a message body goes into a debug log line.
const maxLogBodyLen = 1024

func truncateForLog(s string) string {
	if len(s) <= maxLogBodyLen {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes total)", s[:maxLogBodyLen], len(s))
}
