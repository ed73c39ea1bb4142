package masking

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// preambles are line prefixes the local model uses for commentary around the masked text.
var preambles = []string{"Here", "The", "I've", "This"}

// CleanOutput strips the reasoning block and commentary lines from a masking reply.
// Best-effort only: a masked line that happens to start with one of the prefixes is dropped too.
func CleanOutput(raw string) string {
	if strings.Contains(raw, thinkOpen) {
		if i := strings.Index(raw, thinkClose); i >= 0 {
			raw = strings.TrimSpace(raw[i+len(thinkClose):])
		}
	}

	kept := make([]string, 0, 8)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || hasPreamble(line) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return strings.TrimSpace(raw)
	}
	return strings.Join(kept, " ")
}

func hasPreamble(line string) bool {
	for _, p := range preambles {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
