// Package render turns a position into a PNG for the board endpoint.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kapu/chess-arena-go/internal/engine"
)

const (
	squareSize = 56
	margin     = 20
)

var (
	lightSquare = color.RGBA{R: 0xf0, G: 0xd9, B: 0xb5, A: 0xff}
	darkSquare  = color.RGBA{R: 0xb5, G: 0x88, B: 0x63, A: 0xff}
	frameColor  = color.RGBA{R: 0x2e, G: 0x26, B: 0x1e, A: 0xff}
	labelColor  = color.RGBA{R: 0xec, G: 0xe4, B: 0xd8, A: 0xff}
)

// BoardRenderer rasterizes positions. Piece glyphs are generated SVG discs
// drawn through oksvg and cached per side.
type BoardRenderer struct {
	mu    sync.Mutex
	cache map[engine.Side]*image.RGBA
}

func NewBoardRenderer() *BoardRenderer {
	return &BoardRenderer{cache: make(map[engine.Side]*image.RGBA)}
}

// RenderPNG draws the position from White's point of view.
func (r *BoardRenderer) RenderPNG(pos *engine.Position) ([]byte, error) {
	size := squareSize*8 + margin*2
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, draw.Src)

	origin := image.Pt(margin, margin)
	r.drawSquares(img, origin)
	if err := r.drawPieces(img, origin, pos); err != nil {
		return nil, err
	}
	r.drawCoordinates(img, origin)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *BoardRenderer) drawSquares(dst draw.Image, origin image.Point) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			clr := lightSquare
			if (row+col)%2 == 1 {
				clr = darkSquare
			}
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			draw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize),
				image.NewUniform(clr), image.Point{}, draw.Src)
		}
	}
}

func (r *BoardRenderer) drawPieces(dst draw.Image, origin image.Point, pos *engine.Position) error {
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			pc := pos.At(engine.Square{File: file, Rank: rank})
			if pc.Empty() {
				continue
			}
			disc, err := r.disc(pc.Side)
			if err != nil {
				return err
			}
			// Rank 8 is the top row when rendering for White.
			x := origin.X + file*squareSize
			y := origin.Y + (7-rank)*squareSize
			draw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), disc, image.Point{}, draw.Over)
			r.drawGlyph(dst, x, y, pc)
		}
	}
	return nil
}

// disc rasterizes the piece background disc for a side, once.
func (r *BoardRenderer) disc(side engine.Side) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if img, ok := r.cache[side]; ok {
		return img, nil
	}

	fill, stroke := "#f9f9f9", "#1c1c1c"
	if side == engine.Black {
		fill, stroke = "#2b2b2b", "#e8e8e8"
	}
	svg := fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<circle cx="%d" cy="%d" r="%d" fill="%s" stroke="%s" stroke-width="3"/></svg>`,
		squareSize, squareSize, squareSize, squareSize,
		squareSize/2, squareSize/2, squareSize/2-8, fill, stroke,
	)

	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(squareSize), float64(squareSize))

	img := image.NewRGBA(image.Rect(0, 0, squareSize, squareSize))
	scanner := rasterx.NewScannerGV(squareSize, squareSize, img, img.Bounds())
	raster := rasterx.NewDasher(squareSize, squareSize, scanner)
	icon.Draw(raster, 1.0)

	r.cache[side] = img
	return img, nil
}

func (r *BoardRenderer) drawGlyph(dst draw.Image, x, y int, pc engine.Piece) {
	letter := pieceLetter(pc.Kind)
	clr := color.RGBA{R: 0x1c, G: 0x1c, B: 0x1c, A: 0xff}
	if pc.Side == engine.Black {
		clr = color.RGBA{R: 0xe8, G: 0xe8, B: 0xe8, A: 0xff}
	}
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(clr),
		Face: face,
		Dot: fixed.P(
			x+squareSize/2-face.Advance/2,
			y+squareSize/2+face.Ascent/2,
		),
	}
	d.DrawString(letter)
}

func (r *BoardRenderer) drawCoordinates(dst draw.Image, origin image.Point) {
	face := basicfont.Face7x13
	for i := 0; i < 8; i++ {
		fileLabel := string(rune('a' + i))
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(labelColor),
			Face: face,
			Dot: fixed.P(
				origin.X+i*squareSize+squareSize/2-face.Advance/2,
				origin.Y+8*squareSize+margin-6,
			),
		}
		d.DrawString(fileLabel)

		rankLabel := string(rune('8' - i))
		d = &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(labelColor),
			Face: face,
			Dot: fixed.P(
				origin.X-margin+6,
				origin.Y+i*squareSize+squareSize/2+face.Ascent/2,
			),
		}
		d.DrawString(rankLabel)
	}
}

func pieceLetter(k engine.PieceKind) string {
	switch k {
	case engine.King:
		return "K"
	case engine.Queen:
		return "Q"
	case engine.Rook:
		return "R"
	case engine.Bishop:
		return "B"
	case engine.Knight:
		return "N"
	default:
		return "P"
	}
}
