package executor

import (
	"fmt"
	"math"
)

// Name enumerates the supported input commands.
type Name string

const (
	CmdTap        Name = "tap"
	CmdLongPress  Name = "long_press"
	CmdSwipe      Name = "swipe"
	CmdInputText  Name = "input_text"
	CmdBack       Name = "back"
	CmdPressKey   Name = "press_key"
	CmdStartApp   Name = "start_app"
)

// Command is one synthesized-input instruction from the remote caller.
type Command struct {
	Name   Name
	Params map[string]interface{}
}

// Int extracts an integer parameter. JSON numbers arrive as float64.
func (c Command) Int(key string) (int, bool) {
	v, ok := c.Params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

// Str extracts a string parameter.
func (c Command) Str(key string) (string, bool) {
	v, ok := c.Params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Has reports whether the parameter is present at all.
func (c Command) Has(key string) bool {
	_, ok := c.Params[key]
	return ok
}

// Validate checks required parameters before anything executes. A failure
// here never reaches the execution phase.
func (c Command) Validate() *Failure {
	switch c.Name {
	case CmdTap, CmdLongPress:
		if c.Has("index") {
			if _, ok := c.Int("index"); !ok {
				return Validationf("%s: index must be an integer", c.Name)
			}
			return nil
		}
		return c.requireInts("x", "y")
	case CmdSwipe:
		if f := c.requireInts("start_x", "start_y", "end_x", "end_y"); f != nil {
			return f
		}
		if c.Has("duration_ms") {
			if d, ok := c.Int("duration_ms"); !ok || d <= 0 {
				return Validationf("swipe: duration_ms must be a positive integer")
			}
		}
		return nil
	case CmdInputText:
		text, ok := c.Str("text")
		if !ok || text == "" {
			return Validationf("input_text: text is required")
		}
		if c.Has("x") != c.Has("y") {
			return Validationf("input_text: x and y must be supplied together")
		}
		if c.Has("x") {
			return c.requireInts("x", "y")
		}
		return nil
	case CmdBack:
		return nil
	case CmdPressKey:
		if _, ok := c.Int("keycode"); !ok {
			return Validationf("press_key: keycode is required")
		}
		return nil
	case CmdStartApp:
		pkg, ok := c.Str("package")
		if !ok || pkg == "" {
			return Validationf("start_app: package is required")
		}
		return nil
	default:
		return Validationf("unknown command %q", c.Name)
	}
}

func (c Command) requireInts(keys ...string) *Failure {
	for _, k := range keys {
		if _, ok := c.Int(k); !ok {
			return Validationf("%s: %s is required and must be an integer", c.Name, k)
		}
	}
	return nil
}

func (c Command) String() string {
	return fmt.Sprintf("%s%v", c.Name, c.Params)
}
