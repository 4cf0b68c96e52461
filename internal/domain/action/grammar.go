package action

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Call is the untyped result of parsing NAME(ARGUMENT).
type Call struct {
	Name     Name
	Argument string
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, c.Argument)
}

// Parse reads NAME(ARGUMENT) out of raw oracle text. The name is everything
// before the first "(" and the argument everything between that "(" and the
// last ")". Arguments that themselves end in ")" or contain a second call are
// therefore not separable: "A(x) B(y)" parses as A with argument "x) B(y".
func Parse(raw string) (Call, error) {
	s := strings.TrimSpace(raw)
	open := strings.Index(s, "(")
	if open < 0 {
		return Call{}, fmt.Errorf("%w: no %q in %q", ErrParse, "(", clip(s))
	}
	closing := strings.LastIndex(s, ")")
	if closing < open {
		return Call{}, fmt.Errorf("%w: no %q after %q in %q", ErrParse, ")", "(", clip(s))
	}
	name := strings.TrimSpace(s[:open])
	if name == "" {
		return Call{}, fmt.Errorf("%w: empty action name in %q", ErrParse, clip(s))
	}
	return Call{Name: Name(name), Argument: s[open+1 : closing]}, nil
}

// ParseAction parses raw text and decodes it into a typed action. Malformed
// text is reported as unsupported as well as malformed.
func ParseAction(raw string) (Action, error) {
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedAction, err)
	}
	return Decode(c)
}

// clip shortens s to at most 80 bytes without splitting a rune.
func clip(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
