package exact

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// validReason is what the engine reports for a geometry that passes.
const validReason = "Valid Geometry"

// reasonPattern captures the engine's "<message>[x y]" diagnostic form.
var reasonPattern = regexp.MustCompile(`^(.*?)\s*\[([^\[\]]+)\]$`)

// ParseReason splits an engine validity diagnostic into its message and,
// when present, the offending coordinate. The engine appends the
// coordinate in square brackets, e.g. "Self-intersection[2.5 7]".
// Diagnostics without a parseable coordinate yield a nil location; the
// message is never invented and never defaults to the origin.
func ParseReason(reason string) (string, geom.Coord) {
	reason = strings.TrimSpace(reason)
	if reason == "" || reason == validReason {
		return "", nil
	}
	m := reasonPattern.FindStringSubmatch(reason)
	if m == nil {
		return reason, nil
	}
	msg := strings.TrimSpace(m[1])
	if msg == "" {
		msg = reason
	}
	fields := strings.Fields(m[2])
	if len(fields) < 2 {
		return msg, nil
	}
	x, errX := strconv.ParseFloat(fields[0], 64)
	y, errY := strconv.ParseFloat(fields[1], 64)
	if errX != nil || errY != nil {
		return msg, nil
	}
	return msg, geom.Coord{x, y}
}
