package regression

import (
	"fmt"
	"strings"
)

// #region method
// Method selects a regression strategy. The zero value is invalid.
type Method int

const (
	MethodLinear Method = iota + 1
	MethodPolynomial
	MethodNeural
	MethodEnsemble
)

// Methods lists every valid method.
var Methods = []Method{MethodLinear, MethodPolynomial, MethodNeural, MethodEnsemble}

func (m Method) String() string {
	switch m {
	case MethodLinear:
		return "LINEAR"
	case MethodPolynomial:
		return "POLYNOMIAL"
	case MethodNeural:
		return "NEURAL"
	case MethodEnsemble:
		return "ENSEMBLE"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Valid reports whether m is one of the declared methods.
func (m Method) Valid() bool {
	return m >= MethodLinear && m <= MethodEnsemble
}

// ParseMethod converts a method name (case-insensitive) to a Method.
func ParseMethod(s string) (Method, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, m := range Methods {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown regression method %q", s)
}

func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid regression method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
// #endregion method
