package crew

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Render fills {name} placeholders from inputs. Placeholders with no input
// are reported together.
func Render(tmpl string, inputs map[string]string) (string, error) {
	missing := make(map[string]struct{})
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := inputs[name]
		if !ok {
			missing[name] = struct{}{}
			return m
		}
		return v
	})
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", fmt.Errorf("unresolved placeholders: %s", strings.Join(names, ", "))
	}
	return out, nil
}
