//go:build windows

package main

import (
	"os"

	"golang.org/x/sys/windows"
)

// enableVT turns on VT processing for the console so the review list's
// arrow-key escapes reach interactiveSelect and its colour codes render.
func enableVT() {
	consoles := []struct {
		f    *os.File
		flag uint32
	}{
		{os.Stdin, windows.ENABLE_VIRTUAL_TERMINAL_INPUT},
		{os.Stdout, windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING},
	}
	for _, c := range consoles {
		h := windows.Handle(c.f.Fd())
		var mode uint32
		if windows.GetConsoleMode(h, &mode) != nil {
			continue // redirected, not a console
		}
		_ = windows.SetConsoleMode(h, mode|c.flag)
	}
}
