package cli

import (
	"fmt"
	"time"

	cwerrors "github.com/rileyhilliard/cw/internal/errors"
	"golang.org/x/term"
)

// ParseDurationFlag parses a duration flag value. Empty means zero.
func ParseDurationFlag(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, cwerrors.WrapWithCode(err, cwerrors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid duration for --%s", value, name),
			"Try something like 5s, 2m, or 500ms.")
	}
	if d < 0 {
		return 0, cwerrors.New(cwerrors.ErrConfig,
			fmt.Sprintf("--%s can't be negative", name),
			"Use 0 to turn it off.")
	}
	return d, nil
}

// stdoutIsTerminal is swapped in tests.
var stdoutIsTerminal = func(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}
