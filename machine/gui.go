package machine

import (
	"image"
	"image/color"
	"image/draw"
	"log"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"
)

const (
	screenCols = 80
	screenRows = 25
)

var (
	face       = basicfont.Face7x13
	background = image.NewUniform(color.RGBA{0x10, 0x10, 0x10, 0xff})
	foreground = image.NewUniform(color.RGBA{0xd0, 0xd0, 0xc0, 0xff})
)

// gui shows the console output in a window until the window is closed.
type gui struct {
	scr   *Screen
	title string

	size image.Point
	buf  screen.Buffer
	tex  screen.Texture
	ver  int // screen version drawn into buf
}

func (g *gui) Run(exit <-chan bool) error {
	var err error
	driver.Main(func(s screen.Screen) {
		g.size = image.Point{screenCols * face.Advance, screenRows * face.Height}
		w, e := s.NewWindow(&screen.NewWindowOptions{
			Title:  "conport: " + g.title,
			Width:  g.size.X,
			Height: g.size.Y,
		})
		if e != nil {
			err = e
			return
		}
		defer w.Release()

		if g.buf, err = s.NewBuffer(g.size); err != nil {
			return
		}
		if g.tex, err = s.NewTexture(g.size); err != nil {
			return
		}
		defer g.release()

		type update struct{}
		done := make(chan bool)
		defer close(done)
		go func() {
			t := time.NewTicker(time.Second / 30)
			defer t.Stop()
			halted := false
			for {
				select {
				case <-t.C:
					w.Send(update{})
				case <-exit:
					if !halted {
						halted = true
						w.Send(update{})
					}
					exit = nil
				case <-done:
					return
				}
			}
		}()

		var (
			sz    size.Event
			dirty = true
		)
		g.ver = -1
		for {
			switch e := w.NextEvent().(type) {
			case lifecycle.Event:
				if e.To == lifecycle.StageDead {
					return
				}
			case size.Event:
				sz = e
				if sz.WidthPx+sz.HeightPx == 0 {
					return
				}
				dirty = true
			case paint.Event:
				dirty = true
			case update:
				if g.draw() {
					dirty = true
				}
			case error:
				log.Print(e)
			}
			if dirty && sz.WidthPx > 0 {
				g.tex.Upload(image.Point{}, g.buf, g.buf.Bounds())
				w.Scale(sz.Bounds(), g.tex, g.tex.Bounds(), draw.Src, nil)
				w.Publish()
				dirty = false
			}
		}
	})
	return err
}

// draw renders the screen text into the buffer and reports whether it
// changed since the last call.
func (g *gui) draw() bool {
	lines, ver := g.scr.Lines()
	if ver == g.ver {
		return false
	}
	g.ver = ver
	renderText(g.buf.RGBA(), lines)
	return true
}

func renderText(dst draw.Image, lines []string) {
	draw.Draw(dst, dst.Bounds(), background, image.Point{}, draw.Src)
	d := font.Drawer{Dst: dst, Src: foreground, Face: face}
	for i, l := range lines {
		d.Dot = fixed.P(0, i*face.Height+face.Ascent)
		d.DrawString(l)
	}
}

func (g *gui) release() {
	if g.tex != nil {
		g.tex.Release()
	}
	if g.buf != nil {
		g.buf.Release()
	}
}
