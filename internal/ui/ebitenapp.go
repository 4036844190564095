package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// App is the ebiten host: it drives Machine.RunFrame once per emulated
// frame, presents VideoBuffer, streams AudioFill to the speakers, and maps
// keyboard input to SetButton calls.
type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image

	paused bool
	fast   bool
	turbo  int // turbo speed multiplier while Tab is held (values below 2 run at x2)

	lastTime   time.Time
	frameAcc   float64 // accumulated fractional frames
	audioMuted bool

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioSrc    *apuStream

	showMenu bool
	menuMode string // "main" | "rom" | "keys"
	menuIdx  int

	romPath string // currently loaded ROM, for the .sav sidecar and window title
	romData []byte // cached for Reset

	romList []string
	romSel  int
	romOff  int

	keysOff int

	toastMsg   string
	toastUntil time.Time

	showStats bool
}

// NewApp constructs the host around an already-configured Machine. If the
// Machine has no ROM loaded yet, the ROM picker opens automatically.
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	a := &App{cfg: cfg, m: m, turbo: 1}
	a.lastTime = time.Now()
	a.audioCtx = audio.NewContext(48000)
	if m != nil {
		a.showMenu = true
		a.menuMode = "rom"
		a.romList = a.findROMs()
	}
	return a
}

// LoadROM loads a ROM from disk, restoring any .sav sidecar and updating
// the window title and cached state used by Reset.
func (a *App) LoadROM(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := a.m.LoadROM(data); err != nil {
		return err
	}
	a.romPath = path
	a.romData = data
	a.showMenu = false
	if sav, err := os.ReadFile(a.savPath()); err == nil {
		a.m.LoadBattery(sav)
	}
	title := a.cfg.Title
	if base := filepath.Base(path); base != "" {
		title = a.cfg.Title + " - [" + base + "]"
	}
	ebiten.SetWindowTitle(title)
	return nil
}

// savPath derives the battery-RAM sidecar path for the current ROM.
func (a *App) savPath() string {
	if a.romPath == "" {
		return ""
	}
	return strings.TrimSuffix(a.romPath, filepath.Ext(a.romPath)) + ".sav"
}

// SaveBattery writes the current cartridge's battery RAM to its .sav
// sidecar, if it has any.
func (a *App) SaveBattery() {
	path := a.savPath()
	if path == "" {
		return
	}
	if data, ok := a.m.SaveBattery(); ok {
		_ = os.WriteFile(path, data, 0644)
	}
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	if a.audioPlayer == nil && a.m != nil {
		a.audioMuted = true
		a.audioSrc = &apuStream{m: a.m, muted: &a.audioMuted}
		if p, err := a.audioCtx.NewPlayer(a.audioSrc); err == nil {
			a.audioPlayer = p
			a.audioPlayer.SetBufferSize(time.Duration(a.cfg.AudioBufferMs) * time.Millisecond)
			a.audioPlayer.Play()
		}
	}

	if !a.showMenu {
		a.m.SetButton(emu.ButtonRight, ebiten.IsKeyPressed(ebiten.KeyRight))
		a.m.SetButton(emu.ButtonLeft, ebiten.IsKeyPressed(ebiten.KeyLeft))
		a.m.SetButton(emu.ButtonUp, ebiten.IsKeyPressed(ebiten.KeyUp))
		a.m.SetButton(emu.ButtonDown, ebiten.IsKeyPressed(ebiten.KeyDown))
		a.m.SetButton(emu.ButtonA, ebiten.IsKeyPressed(ebiten.KeyZ))
		a.m.SetButton(emu.ButtonB, ebiten.IsKeyPressed(ebiten.KeyX))
		a.m.SetButton(emu.ButtonStart, ebiten.IsKeyPressed(ebiten.KeyEnter))
		a.m.SetButton(emu.ButtonSelect, ebiten.IsKeyPressed(ebiten.KeyShiftRight))
	} else {
		for _, b := range [...]emu.Button{emu.ButtonRight, emu.ButtonLeft, emu.ButtonUp, emu.ButtonDown, emu.ButtonA, emu.ButtonB, emu.ButtonStart, emu.ButtonSelect} {
			a.m.SetButton(b, false)
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	if inpututil.IsKeyJustPressed(ebiten.KeyF6) && a.turbo > 1 {
		a.turbo--
		a.toast(fmt.Sprintf("Turbo: x%d", a.turbo))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF7) && a.turbo < 10 {
		a.turbo++
		a.toast(fmt.Sprintf("Turbo: x%d", a.turbo))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) && a.romData != nil {
		a.SaveBattery()
		_ = a.m.LoadROM(a.romData)
		a.toast("Reset")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.showMenu = !a.showMenu
		if a.showMenu {
			a.menuMode = "main"
			a.menuIdx = 0
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if err := a.saveScreenshot(); err == nil {
			a.toast("Screenshot saved")
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF8) {
		a.showStats = !a.showStats
	}

	muted := a.paused || a.showMenu
	if muted != a.audioMuted {
		a.audioMuted = muted
		a.lastTime = time.Now()
		a.frameAcc = 0
	}

	if a.showMenu {
		a.updateMenu()
	}

	if !a.showMenu && !a.paused && a.romData != nil {
		now := time.Now()
		dt := now.Sub(a.lastTime).Seconds()
		if dt < 0 {
			dt = 0
		}
		a.lastTime = now
		gbFps := 4194304.0 / 70224.0 // ~59.7275
		speed := 1.0
		if a.fast {
			speed = float64(max(2, a.turbo))
		}
		a.frameAcc += dt * gbFps * speed
		steps := 0
		for a.frameAcc >= 1.0 && steps < 10 { // cap to avoid spiral of death
			a.m.RunFrame()
			a.frameAcc -= 1.0
			steps++
		}
	}

	return nil
}

func (a *App) updateMenu() {
	switch a.menuMode {
	case "main":
		max := 2
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
			a.menuIdx--
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < max {
			a.menuIdx++
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			switch a.menuIdx {
			case 0:
				a.romList = a.findROMs()
				a.romSel, a.romOff = 0, 0
				a.menuMode = "rom"
			case 1:
				a.menuMode = "keys"
				a.keysOff = 0
			case 2:
				if a.romData != nil {
					a.showMenu = false
				}
			}
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && a.romData != nil {
			a.showMenu = false
		}
	case "rom":
		n := len(a.romList)
		if n == 0 {
			if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
				if a.romData != nil {
					a.menuMode = "main"
				}
			}
			return
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.romSel > 0 {
			a.romSel--
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.romSel < n-1 {
			a.romSel++
		}
		maxRows := 7
		if a.romSel < a.romOff {
			a.romOff = a.romSel
		}
		if a.romSel >= a.romOff+maxRows {
			a.romOff = a.romSel - maxRows + 1
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			path := a.romList[a.romSel]
			if err := a.LoadROM(path); err == nil {
				a.toast("Loaded " + filepath.Base(path))
				a.showMenu = false
			} else {
				a.toast("Load failed: " + err.Error())
			}
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			if a.romData != nil {
				a.menuMode = "main"
			}
		}
	case "keys":
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.menuMode = "main"
		}
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	if a.romData != nil {
		a.tex.WritePixels(a.m.VideoBuffer())
		screen.DrawImage(a.tex, nil)
	}

	if a.showStats && a.audioSrc != nil {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Underruns: %d  Turbo: x%d", a.audioSrc.underruns, a.turbo), 4, 4)
	}
	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 6, 4)
	}

	if a.showMenu {
		a.drawMenu(screen)
	}
}

func (a *App) drawMenu(screen *ebiten.Image) {
	switch a.menuMode {
	case "main":
		lines := []string{"Menu:", "  Switch ROM", "  Keybindings", "  Close"}
		for i, s := range lines {
			prefix := "  "
			if i == a.menuIdx+1 {
				prefix = "> "
			}
			ebitenutil.DebugPrintAt(screen, prefix+s, 10, 10+i*14)
		}
	case "rom":
		ebitenutil.DebugPrintAt(screen, "Select ROM (Enter to load)", 10, 10)
		ebitenutil.DebugPrintAt(screen, "Dir: "+a.cfg.ROMsDir, 10, 24)
		if len(a.romList) == 0 {
			ebitenutil.DebugPrintAt(screen, "No ROMs found", 10, 40)
			return
		}
		maxRows := 7
		end := a.romOff + maxRows
		if end > len(a.romList) {
			end = len(a.romList)
		}
		for i, p := range a.romList[a.romOff:end] {
			prefix := "  "
			if a.romOff+i == a.romSel {
				prefix = "> "
			}
			ebitenutil.DebugPrintAt(screen, prefix+filepath.Base(p), 10, 40+i*14)
		}
	case "keys":
		rows := []string{
			"Z: A  X: B  Enter: Start  RShift: Select",
			"Arrows: D-Pad",
			"P: Pause",
			"Tab: Fast-forward  F6/F7: Turbo",
			"R: Reset  F11: Fullscreen  F12: Screenshot",
			"Esc: Open/Close Menu",
		}
		for i, s := range rows {
			ebitenutil.DebugPrintAt(screen, s, 10, 10+i*14)
		}
	}
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

// findROMs returns a sorted list of .gb/.gbc files under the configured
// ROMs directory.
func (a *App) findROMs() []string {
	var files []string
	entries, err := os.ReadDir(a.cfg.ROMsDir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		low := strings.ToLower(e.Name())
		if strings.HasSuffix(low, ".gb") || strings.HasSuffix(low, ".gbc") {
			files = append(files, filepath.Join(a.cfg.ROMsDir, e.Name()))
		}
	}
	sort.Strings(files)
	return files
}

func (a *App) Layout(outW, outH int) (int, int) { return 160, 144 }
