// Package cli implements the harness's "name value" positional flag
// convention: list-valued flags parse comma-separated values, and every
// parsed parameter is echoed to an output stream as "PARAM: name=value".
//
// The comma-separated lists implement flag.Value, and the echoing
// follows original_source/src/command_line.hpp's
// parse_command_line, which echoes each parsed argument the same way
// before running.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// IntList is a flag.Value holding a comma-separated list of ints.
type IntList []int

func (l *IntList) String() string {
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *IntList) Set(value string) error {
	var result IntList
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		n, err := strconv.Atoi(field)
		if err != nil {
			return fmt.Errorf("cli: invalid integer %q: %w", field, err)
		}
		result = append(result, n)
	}
	*l = result
	return nil
}

// Echo writes a single "PARAM: name=value" line, the harness's
// parameter-echoing convention.
func Echo(w io.Writer, name string, value fmt.Stringer) {
	fmt.Fprintf(w, "PARAM: %s=%s\n", name, value.String())
}

// EchoValue is Echo for plain values that don't implement
// fmt.Stringer (ints, strings).
func EchoValue(w io.Writer, name string, value interface{}) {
	fmt.Fprintf(w, "PARAM: %s=%v\n", name, value)
}
