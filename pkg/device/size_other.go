//go:build !unix

package device

import "github.com/charmbracelet/x/term"

// querySize asks the console for its cell dimensions. Pixel sizes are not
// available outside unix.
func querySize(fd uintptr) Size {
	w, h, err := term.GetSize(fd)
	if err != nil {
		return Size{}
	}
	return Size{Cols: w, Rows: h}
}
