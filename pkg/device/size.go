package device

import (
	"os"
	"strconv"
)

// Size represents terminal dimensions in both character cells and pixels.
type Size struct {
	Cols   int // Character columns
	Rows   int // Character rows
	PixelW int // Total pixel width (0 if unknown)
	PixelH int // Total pixel height (0 if unknown)
	CellW  int // Pixel width per cell (0 if unknown)
	CellH  int // Pixel height per cell (0 if unknown)
}

// GetSize returns the current terminal dimensions. It tries multiple
// strategies in order:
//  1. platform query on stdout, then stderr
//  2. COLUMNS/LINES environment variables
//  3. Fallback to 80x24
func GetSize() Size {
	for _, f := range []*os.File{os.Stdout, os.Stderr} {
		if s := querySize(f.Fd()); s.Cols > 0 && s.Rows > 0 {
			return s
		}
	}
	return getSizeFromEnv()
}

// withCells fills in per-cell pixel dimensions when pixel info is known.
func (s Size) withCells() Size {
	if s.PixelW > 0 && s.Cols > 0 {
		s.CellW = s.PixelW / s.Cols
	}
	if s.PixelH > 0 && s.Rows > 0 {
		s.CellH = s.PixelH / s.Rows
	}
	return s
}

// Pixels returns the screen size in pixels, estimating from the cell grid
// with the given cell width when the terminal does not report pixels.
// Cells are assumed twice as tall as wide.
func (s Size) Pixels(cellW int) (w, h int) {
	if s.PixelW > 0 && s.PixelH > 0 {
		return s.PixelW, s.PixelH
	}
	if cellW <= 0 {
		cellW = 9
	}
	return s.Cols * cellW, s.Rows * cellW * 2
}

// getSizeFromEnv reads terminal dimensions from COLUMNS/LINES environment
// variables, falling back to 80x24 defaults.
func getSizeFromEnv() Size {
	cols := envInt("COLUMNS", 80)
	rows := envInt("LINES", 24)
	return Size{Cols: cols, Rows: rows}
}

// envInt reads an integer from the named environment variable. Returns
// the fallback value if the variable is unset, empty, or not a valid
// positive integer.
func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
