// Package window desenha as linhas do overlay numa janela ebiten sem borda,
// sempre no topo e semitransparente.
package window

import (
	"context"
	"image/color"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

const (
	lineHeight = 16
	margin     = 8
)

// Source é o que a janela desenha; overlay.View implementa.
type Source interface {
	Lines() []string
}

type Options struct {
	Title        string
	Width        int
	Height       int
	Alpha        byte
	ClickThrough bool
	Logger       *log.Logger
}

type game struct {
	ctx    context.Context
	src    Source
	opts   Options
	styled bool
	tries  int
	bg     color.RGBA
}

// Run abre a janela e bloqueia até ctx ser cancelado ou a janela fechar.
// Precisa rodar na goroutine principal.
func Run(ctx context.Context, src Source, opts Options) error {
	if opts.Title == "" {
		opts.Title = "sruwatch"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ebiten.SetWindowTitle(opts.Title)
	ebiten.SetWindowSize(opts.Width, opts.Height)
	ebiten.SetWindowDecorated(false)
	ebiten.SetWindowFloating(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetTPS(10)

	g := &game{
		ctx:  ctx,
		src:  src,
		opts: opts,
		bg:   color.RGBA{A: opts.Alpha},
	}
	err := ebiten.RunGameWithOptions(g, &ebiten.RunGameOptions{
		ScreenTransparent: true,
		InitUnfocused:     true,
	})
	if err == ebiten.Termination {
		return nil
	}
	return err
}

func (g *game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	// a janela nativa só existe depois do primeiro frame
	if !g.styled && g.tries < 20 {
		g.tries++
		if err := style(g.opts.Title, g.opts.Alpha, g.opts.ClickThrough); err != nil {
			g.opts.Logger.Printf("[OVERLAY] estilo: %v", err)
		} else {
			g.styled = true
		}
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(g.bg)
	for i, line := range g.src.Lines() {
		ebitenutil.DebugPrintAt(screen, line, margin, margin+i*lineHeight)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
