//go:build unix

package device

import "golang.org/x/sys/unix"

// querySize queries the terminal size via TIOCGWINSZ ioctl, which reports
// both cell and pixel dimensions. Returns a zero-value Size on failure.
func querySize(fd uintptr) Size {
	ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	if err != nil {
		return Size{}
	}
	return Size{
		Cols:   int(ws.Col),
		Rows:   int(ws.Row),
		PixelW: int(ws.Xpixel),
		PixelH: int(ws.Ypixel),
	}.withCells()
}
