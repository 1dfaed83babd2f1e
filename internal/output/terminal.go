package output

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ColorEnabled reports whether output written to f should be colored: f is
// a terminal and NO_COLOR is unset.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
