// Package joypad models the P1/JOYP register and the 8-button active-low
// input matrix, including the joypad interrupt fired on a selected-line
// high-to-low (press) transition.
package joypad

import "github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/irq"

type Button int

const (
	Right Button = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

type Joypad struct {
	selectDirection bool // P1 bit4 as written; false (bit clear) selects direction keys
	selectAction    bool // P1 bit5 as written; false (bit clear) selects action keys
	pressed         [8]bool

	irq *irq.Controller
}

func New(c *irq.Controller) *Joypad { return &Joypad{irq: c} }

func (j *Joypad) directionLine() byte {
	var v byte
	if j.pressed[Right] {
		v |= 1 << 0
	}
	if j.pressed[Left] {
		v |= 1 << 1
	}
	if j.pressed[Up] {
		v |= 1 << 2
	}
	if j.pressed[Down] {
		v |= 1 << 3
	}
	return v
}

func (j *Joypad) actionLine() byte {
	var v byte
	if j.pressed[A] {
		v |= 1 << 0
	}
	if j.pressed[B] {
		v |= 1 << 1
	}
	if j.pressed[Select] {
		v |= 1 << 2
	}
	if j.pressed[Start] {
		v |= 1 << 3
	}
	return v
}

// Read returns the JOYP register value as the CPU sees it: bits 6-7 always
// read 1, selected lines are active-low, unselected groups read as 1s.
func (j *Joypad) Read() byte {
	out := byte(0x0F)
	if !j.selectAction {
		out &^= j.actionLine()
	}
	if !j.selectDirection {
		out &^= j.directionLine()
	}
	sel := byte(0)
	if j.selectAction {
		sel |= 1 << 5
	}
	if j.selectDirection {
		sel |= 1 << 4
	}
	return 0xC0 | sel | out
}

// Write updates the selection bits (4 and 5); bits 0-3 are read-only to the CPU.
func (j *Joypad) Write(v byte) {
	j.selectAction = v&(1<<5) != 0
	j.selectDirection = v&(1<<4) != 0
}

// SetButton updates a button's pressed state, raising the joypad interrupt
// if the press causes a selected line to transition high-to-low.
func (j *Joypad) SetButton(b Button, pressed bool) {
	if j.pressed[b] == pressed {
		return
	}
	before := j.Read() & 0x0F
	j.pressed[b] = pressed
	after := j.Read() & 0x0F
	// Any bit that was 1 (released) and became 0 (pressed) is a falling edge.
	if pressed && (before&^after) != 0 {
		j.irq.Request(irq.Joypad)
	}
}
