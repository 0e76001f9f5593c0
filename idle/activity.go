package idle

import "strings"

// Activity is a kind of user input that keeps the session alive.
type Activity int

const (
	PointerMove Activity = iota + 1
	KeyPress
	PointerDown
	TouchStart
)

func (a Activity) String() string {
	switch a {
	case PointerMove:
		return "pointer-move"
	case KeyPress:
		return "key-press"
	case PointerDown:
		return "pointer-down"
	case TouchStart:
		return "touch-start"
	default:
		return "unknown"
	}
}

// ParseActivity accepts the canonical names and the browser event names.
func ParseActivity(s string) (Activity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pointer-move", "mousemove", "pointermove":
		return PointerMove, true
	case "key-press", "keydown", "keypress":
		return KeyPress, true
	case "pointer-down", "mousedown", "pointerdown", "click":
		return PointerDown, true
	case "touch-start", "touchstart":
		return TouchStart, true
	default:
		return 0, false
	}
}
