package cli

import "io"

// SetOutput redirects command output and returns a function restoring it
func SetOutput(w io.Writer) func() {
	prev := output
	output = w
	return func() { output = prev }
}
