package render

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
	xdraw "golang.org/x/image/draw"
)

const inchPerMeter = 1 / 0.0254

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// TightCrop 去掉四周与背景色相同的边，保留pad像素留白
func TightCrop(img *image.RGBA, bg drawing.Color, pad int) *image.RGBA {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X-1, y)+4]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+4]
			if p[0] == bg.R && p[1] == bg.G && p[2] == bg.B && p[3] == bg.A {
				continue
			}
			px := b.Min.X + x
			if px < minX {
				minX = px
			}
			if px > maxX {
				maxX = px
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX {
		return img
	}

	crop := image.Rect(minX-pad, minY-pad, maxX+1+pad, maxY+1+pad).Intersect(b)
	out := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	xdraw.Draw(out, out.Bounds(), img, crop.Min, xdraw.Src)
	return out
}

// EncodePNG 写出PNG，在IHDR之后插入pHYs块记录DPI
func EncodePNG(w io.Writer, img image.Image, dpi float64) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	data := buf.Bytes()
	// 签名8字节，IHDR块固定25字节
	ihdrEnd := len(pngSignature) + 25
	if len(data) < ihdrEnd {
		return errors.New("png too short")
	}
	for _, part := range [][]byte{data[:ihdrEnd], physChunk(dpi), data[ihdrEnd:]} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

func physChunk(dpi float64) []byte {
	ppm := uint32(math.Round(dpi * inchPerMeter))
	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:4], 9)
	copy(chunk[4:8], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:12], ppm)
	binary.BigEndian.PutUint32(chunk[12:16], ppm)
	chunk[16] = 1 // 单位: 米
	binary.BigEndian.PutUint32(chunk[17:21], crc32.ChecksumIEEE(chunk[4:17]))
	return chunk
}

// ReadDPI 读取PNG中pHYs块记录的DPI，没有该块时ok为false
func ReadDPI(data []byte) (dpi float64, ok bool) {
	if !bytes.HasPrefix(data, pngSignature) {
		return 0, false
	}
	for p := len(pngSignature); p+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[p : p+4]))
		typ := string(data[p+4 : p+8])
		if p+12+n > len(data) {
			return 0, false
		}
		if typ == "pHYs" && n == 9 {
			body := data[p+8 : p+8+n]
			if body[8] != 1 {
				return 0, false
			}
			ppm := binary.BigEndian.Uint32(body[0:4])
			return math.Round(float64(ppm)/inchPerMeter*10) / 10, true
		}
		if typ == "IDAT" || typ == "IEND" {
			return 0, false
		}
		p += 12 + n
	}
	return 0, false
}
