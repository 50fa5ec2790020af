package main

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"
)

// interactiveSelect shows lines as a list the user moves through with the
// arrow keys. Enter calls show with the selected index in cooked mode and
// waits for a keypress before redrawing; Esc or Ctrl-C returns.
func interactiveSelect(lines []string, show func(i int)) {
	if len(lines) == 0 {
		return
	}

	enableVT()

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Println("(interactive selection not supported on this terminal)")
		return
	}
	defer func() { term.Restore(fd, oldState) }()

	reader := bufio.NewReader(os.Stdin)
	selected := 0

	// Raw mode does not translate \n, so lines end in \r\n.
	redraw := func() {
		fmt.Print("\033[H\033[2J")
		for i, l := range lines {
			prefix := "  "
			if i == selected {
				prefix = "> "
			}
			fmt.Print(prefix + l + "\r\n")
		}
		fmt.Print("(↑/↓ to navigate, Enter to view details, Esc to quit)\r\n")
	}

	up := func() {
		if selected > 0 {
			selected--
			redraw()
		}
	}
	down := func() {
		if selected < len(lines)-1 {
			selected++
			redraw()
		}
	}
	open := func() bool {
		term.Restore(fd, oldState)
		fmt.Println()
		show(selected)

		fmt.Print("\n(press Enter to return)")
		_, _ = bufio.NewReader(os.Stdin).ReadBytes('\n')

		oldState, err = term.MakeRaw(fd)
		if err != nil {
			return false
		}
		reader = bufio.NewReader(os.Stdin)
		redraw()
		return true
	}

	redraw()

	for {
		b1, err := reader.ReadByte()
		if err != nil {
			return
		}
		// Windows console arrow sequences: 0 or 224, then a scan code.
		if b1 == 0 || b1 == 224 {
			b2, _ := reader.ReadByte()
			switch b2 {
			case 72:
				up()
			case 80:
				down()
			case 13:
				if !open() {
					return
				}
			}
			continue
		}

		switch b1 {
		case 27: // ESC or ANSI sequence
			if reader.Buffered() == 0 {
				fmt.Print("\r\n")
				return
			}
			b2, _ := reader.ReadByte()
			if b2 != '[' || reader.Buffered() == 0 {
				continue
			}
			b3, _ := reader.ReadByte()
			switch b3 {
			case 'A':
				up()
			case 'B':
				down()
			}
		case '\r', '\n':
			if !open() {
				return
			}
		case 3: // Ctrl-C
			fmt.Print("\r\n")
			return
		}
	}
}
