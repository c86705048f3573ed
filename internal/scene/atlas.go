package scene

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"voxelcaster/internal/device"
)

// Atlas is an RGBA texture split into equal tiles, read row by row. Voxel
// value n samples tile n-1.
type Atlas struct {
	img          *image.RGBA
	tileW, tileH int
}

// NewAtlas wraps img. Tile sizes of 0 leave voxels on their fallback
// colours.
func NewAtlas(img image.Image, tileW, tileH int) (*Atlas, error) {
	b := img.Bounds()
	if tileW < 0 || tileH < 0 || tileW > b.Dx() || tileH > b.Dy() {
		return nil, fmt.Errorf("scene: %dx%d tiles do not fit a %dx%d atlas", tileW, tileH, b.Dx(), b.Dy())
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return &Atlas{img: rgba, tileW: tileW, tileH: tileH}, nil
}

// LoadAtlas decodes a PNG, JPEG, BMP or TIFF file.
func LoadAtlas(path string, tileW, tileH int) (*Atlas, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("scene: decode atlas %s: %w", path, err)
	}
	a, err := NewAtlas(img, tileW, tileH)
	if err != nil {
		return nil, fmt.Errorf("scene: %s atlas %s: %w", format, path, err)
	}
	return a, nil
}

func (a *Atlas) Surface() device.Surface { return a }
func (a *Atlas) TileSize() (int, int)    { return a.tileW, a.tileH }
func (a *Atlas) Size() (int, int)        { return a.img.Rect.Dx(), a.img.Rect.Dy() }
func (a *Atlas) Pixels() []byte          { return a.img.Pix }
func (a *Atlas) Image() *image.RGBA      { return a.img }

// Tiles returns how many whole tiles the atlas holds.
func (a *Atlas) Tiles() int {
	if a.tileW == 0 || a.tileH == 0 {
		return 0
	}
	w, h := a.Size()
	return (w / a.tileW) * (h / a.tileH)
}

// Tile returns the bounds of tile i.
func (a *Atlas) Tile(i int) image.Rectangle {
	w, _ := a.Size()
	perRow := w / a.tileW
	x, y := (i%perRow)*a.tileW, (i/perRow)*a.tileH
	return image.Rect(x, y, x+a.tileW, y+a.tileH)
}

var tilePalette = []color.RGBA{
	{R: 128, G: 126, B: 120, A: 255}, // floor stone
	{R: 150, G: 72, B: 54, A: 255},   // brick
	{R: 92, G: 120, B: 70, A: 255},   // moss
	{R: 160, G: 140, B: 100, A: 255}, // sandstone
	{R: 70, G: 90, B: 130, A: 255},   // slate
	{R: 190, G: 190, B: 180, A: 255}, // plaster
}

// GenerateAtlas builds tiles square tiles of size pixels in a single row,
// each a palette colour with mortar lines and per-pixel grain.
func GenerateAtlas(tiles, size int, seed int64) (*Atlas, error) {
	if tiles <= 0 || size <= 0 {
		return nil, fmt.Errorf("scene: %d tiles of %dpx", tiles, size)
	}
	img := image.NewRGBA(image.Rect(0, 0, tiles*size, size))
	rng := rand.New(rand.NewSource(seed))
	for t := 0; t < tiles; t++ {
		base := tilePalette[t%len(tilePalette)]
		r := image.Rect(t*size, 0, (t+1)*size, size)
		draw.Draw(img, r, &image.Uniform{C: base}, image.Point{}, draw.Src)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				grain := rng.Intn(25) - 12
				lx, ly := x-r.Min.X, y-r.Min.Y
				if t > 0 && size >= 8 && (ly%(size/2) == 0 || (lx+(ly/(size/2))*size/4)%(size/2) == 0) {
					grain -= 40
				}
				img.SetRGBA(x, y, color.RGBA{
					R: shade(base.R, grain),
					G: shade(base.G, grain),
					B: shade(base.B, grain),
					A: 255,
				})
			}
		}
	}
	return &Atlas{img: img, tileW: size, tileH: size}, nil
}

func shade(c uint8, d int) uint8 {
	return uint8(min(max(int(c)+d, 0), 255))
}
