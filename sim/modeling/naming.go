package modeling

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ErrInvalidName is returned for names that do not follow the naming rules.
var ErrInvalidName = errors.New("invalid name")

// ValidateName checks that a name follows the naming rules.
//
// A name is a dot-separated hierarchy such as "Soc.Cluster[1].Core[0]". Each
// element starts with a capital letter, contains only letters and digits, and
// may end with one or more integer indices in square brackets.
func ValidateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "empty name")
	}

	for _, elem := range strings.Split(name, ".") {
		if err := validateElement(elem); err != nil {
			return errors.Wrapf(ErrInvalidName, "%q: %s", name, err)
		}
	}

	return nil
}

func validateElement(elem string) error {
	base, indices, _ := strings.Cut(elem, "[")
	if base == "" {
		return errors.New("empty element")
	}

	if !unicode.IsUpper(rune(base[0])) {
		return errors.Errorf("element %q must start with a capital letter", base)
	}

	for _, r := range base {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return errors.Errorf("element %q contains %q", base, r)
		}
	}

	if indices == "" {
		if strings.Contains(elem, "]") {
			return errors.Errorf("unmatched bracket in %q", elem)
		}

		return nil
	}

	for _, idx := range strings.Split(indices, "[") {
		digits, ok := strings.CutSuffix(idx, "]")
		if !ok || strings.Contains(digits, "]") {
			return errors.Errorf("unmatched bracket in %q", elem)
		}

		if _, err := strconv.Atoi(digits); err != nil {
			return errors.Errorf("index %q in %q is not an integer", digits, elem)
		}
	}

	return nil
}

// NameMustBeValid panics if the name does not follow the naming rules.
func NameMustBeValid(name string) {
	if err := ValidateName(name); err != nil {
		panic(err.Error())
	}
}

// BuildName joins a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds a name for one element of a series.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}

// SplitPortName splits "Component.Port" into the component name and the
// port name. The port name is the last element.
func SplitPortName(fullName string) (component, port string, ok bool) {
	i := strings.LastIndex(fullName, ".")
	if i <= 0 || i == len(fullName)-1 {
		return "", "", false
	}

	return fullName[:i], fullName[i+1:], true
}
