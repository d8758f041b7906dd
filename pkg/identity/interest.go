package identity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/srand/jolt/grid/pkg/utils"
	"github.com/umisama/go-regexpcache"
)

// Interest is a matching rule for one attribute value.
//
// An exact interest matches a value equal to Pattern. Otherwise Pattern
// is a regular expression that must match the whole value.
// Interests are plain values: two interests with the same pattern and
// flag are equal and may be used as map keys.
type Interest struct {
	Pattern string `json:"pattern" mapstructure:"pattern"`
	Exact   bool   `json:"exact" mapstructure:"exact"`
}

// NewExactInterest returns an interest matching exactly value.
func NewExactInterest(value string) Interest {
	return Interest{Pattern: value, Exact: true}
}

// NewPatternInterest returns an interest matching the regular expression pattern.
func NewPatternInterest(pattern string) Interest {
	return Interest{Pattern: pattern}
}

// Matches reports whether value satisfies the interest.
// A pattern that does not compile matches nothing.
func (i Interest) Matches(value string) bool {
	if i.Exact {
		return value == i.Pattern
	}

	re, err := i.compile()
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

// Compiles the pattern anchored to the whole value. The pattern is
// checked on its own first, so that unbalanced groups cannot escape
// the anchors.
func (i Interest) compile() (*regexp.Regexp, error) {
	if _, err := regexpcache.Compile(i.Pattern); err != nil {
		return nil, err
	}
	return regexpcache.Compile("^(?:" + i.Pattern + ")$")
}

// Validate returns an error if the pattern of a non-exact interest
// is not a valid regular expression.
func (i Interest) Validate() error {
	if i.Exact {
		return nil
	}
	if _, err := i.compile(); err != nil {
		return fmt.Errorf("%w: invalid interest pattern %q: %v", utils.ErrBadRequest, i.Pattern, err)
	}
	return nil
}

// String renders the interest as "=value" or "~pattern".
func (i Interest) String() string {
	if i.Exact {
		return "=" + i.Pattern
	}
	return "~" + i.Pattern
}

// ParseInterest parses "key=value" (exact) or "key~pattern".
func ParseInterest(s string) (string, Interest, error) {
	idx := strings.IndexAny(s, "=~")
	if idx <= 0 {
		return "", Interest{}, fmt.Errorf("%w: invalid interest: %q", utils.ErrBadRequest, s)
	}

	key := strings.TrimSpace(s[:idx])
	interest := Interest{Pattern: s[idx+1:], Exact: s[idx] == '='}
	if err := interest.Validate(); err != nil {
		return "", Interest{}, err
	}
	return key, interest, nil
}

// ParseInterests parses a list of interests, see ParseInterest.
func ParseInterests(list []string) (map[string]Interest, error) {
	interests := map[string]Interest{}
	for _, s := range list {
		key, interest, err := ParseInterest(s)
		if err != nil {
			return nil, err
		}
		interests[key] = interest
	}
	return interests, nil
}

// Matches checks if a set of attributes satisfies all interests.
// Every key of interests must be present in attributes with a
// matching value, keys without an interest are unconstrained.
func Matches(attributes map[string]string, interests map[string]Interest) bool {
	for key, interest := range interests {
		value, ok := attributes[key]
		if !ok {
			return false
		}
		if !interest.Matches(value) {
			return false
		}
	}
	return true
}
