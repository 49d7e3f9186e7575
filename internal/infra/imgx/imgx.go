package imgx

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // 注册 GIF 解码器
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器
	"os"

	_ "golang.org/x/image/bmp"  // 注册 BMP 解码器
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // 注册 TIFF 解码器
	_ "golang.org/x/image/webp" // 注册 WebP 解码器

	_ "github.com/vegidio/heif-go" // 注册 HEIF/HEIC 解码器

	"github.com/John-Robertt/photiso/internal/domain"
)

// ErrUnsupportedFormat：扩展名可识别，但没有可用的像素解码器（例如 WMP）。
var ErrUnsupportedFormat = errors.New("不支持解码的图片格式")

// 输出质量：显示用图与缩略图统一为 JPEG。
const (
	displayQuality   = 92
	thumbnailQuality = 85
)

// DecodeConfig 只读取图片头，返回像素宽高与格式名。
func DecodeConfig(path string) (width, height int, format string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return 0, 0, "", ErrUnsupportedFormat
		}
		return 0, 0, "", err
	}
	return cfg.Width, cfg.Height, format, nil
}

// Display 解码 path，按方向校正后重新编码为 JPEG（全尺寸）。
func Display(path string, o *domain.Orientation) ([]byte, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(Orient(img, o), displayQuality)
}

// Thumbnail 解码 path，按方向校正后等比缩放到 width 像素宽，编码为 JPEG。
//
// 原图不比 width 宽时不放大。
func Thumbnail(path string, width int, o *domain.Orientation) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("缩略图宽度无效：%d", width)
	}
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	img = Orient(img, o)

	b := img.Bounds()
	if b.Dx() <= width {
		return encodeJPEG(img, thumbnailQuality)
	}
	h := b.Dy() * width / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return encodeJPEG(dst, thumbnailQuality)
}

// Orient 把存储方向的像素变换为显示方向：先逆时针旋转 Rotation 度，再水平镜像。
// o 为 nil 或恒等方向时原样返回。
func Orient(img image.Image, o *domain.Orientation) image.Image {
	if o == nil || (o.Rotation%360 == 0 && !o.Mirrored) {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	rot := ((o.Rotation % 360) + 360) % 360

	dw, dh := w, h
	if rot == 90 || rot == 270 {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var nx, ny int
			switch rot {
			case 90: // 逆时针 90
				nx, ny = y, w-1-x
			case 180:
				nx, ny = w-1-x, h-1-y
			case 270: // 逆时针 270（即顺时针 90）
				nx, ny = h-1-y, x
			default:
				nx, ny = x, y
			}
			if o.Mirrored {
				nx = dw - 1 - nx
			}
			dst.Set(nx, ny, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// DataURL 把 JPEG 字节流包装为 data: URL（info --thumbnail 的输出形式）。
func DataURL(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}
	return img, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
