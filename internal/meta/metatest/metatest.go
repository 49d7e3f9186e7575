// Package metatest 生成带 EXIF 的测试用 JPEG。
package metatest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

// EXIF 是写入 APP1 段的标签子集；零值字段不写入。
type EXIF struct {
	DateTimeOriginal   string // "2006:01:02 15:04:05"
	SubSecTimeOriginal string
	OffsetTimeOriginal string // "+08:00"
	DateTimeDigitized  string
	Orientation        uint16
	Make               string
}

// WriteJPEG 在 path 写入一张 w×h 的纯色 JPEG，并在 SOI 之后插入 EXIF 段。
// fill 用于区分内容（相同 fill + 相同 EXIF 得到逐字节相同的文件）。
func WriteJPEG(t testing.TB, path string, w, h int, fill uint8, x EXIF) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for i := 0; i < w; i++ {
			img.Set(i, y, color.RGBA{fill, fill, fill, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg 失败：%v", err)
	}
	data := buf.Bytes()

	var out bytes.Buffer
	out.Write(data[:2]) // SOI
	if seg := app1(x); seg != nil {
		out.Write(seg)
	}
	out.Write(data[2:])

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("写入 jpeg 失败：%v", err)
	}
}

type entry struct {
	tag   uint16
	typ   uint16 // 2=ASCII 3=SHORT 4=LONG
	count uint32
	data  []byte
}

func ascii(tag uint16, s string) entry {
	b := append([]byte(s), 0)
	return entry{tag: tag, typ: 2, count: uint32(len(b)), data: b}
}

func short(tag uint16, v uint16) entry {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return entry{tag: tag, typ: 3, count: 1, data: b}
}

func app1(x EXIF) []byte {
	var ifd0, sub []entry
	if x.Make != "" {
		ifd0 = append(ifd0, ascii(0x010f, x.Make))
	}
	if x.Orientation != 0 {
		ifd0 = append(ifd0, short(0x0112, x.Orientation))
	}
	if x.DateTimeOriginal != "" {
		sub = append(sub, ascii(0x9003, x.DateTimeOriginal))
	}
	if x.DateTimeDigitized != "" {
		sub = append(sub, ascii(0x9004, x.DateTimeDigitized))
	}
	if x.OffsetTimeOriginal != "" {
		sub = append(sub, ascii(0x9011, x.OffsetTimeOriginal))
	}
	if x.SubSecTimeOriginal != "" {
		sub = append(sub, ascii(0x9291, x.SubSecTimeOriginal))
	}
	if len(ifd0) == 0 && len(sub) == 0 {
		return nil
	}

	// 布局：header(8) | IFD0 | ExifIFD | 数据区。
	hasSub := len(sub) > 0
	n0 := len(ifd0)
	if hasSub {
		n0++ // ExifIFDPointer
	}
	ifd0Off := uint32(8)
	subOff := ifd0Off + uint32(2+12*n0+4)
	dataOff := subOff
	if hasSub {
		dataOff += uint32(2 + 12*len(sub) + 4)
	}

	le := binary.LittleEndian
	var data bytes.Buffer
	writeIFD := func(buf *bytes.Buffer, es []entry, extra *entry) {
		n := len(es)
		if extra != nil {
			n++
		}
		_ = binary.Write(buf, le, uint16(n))
		put := func(e entry) {
			_ = binary.Write(buf, le, e.tag)
			_ = binary.Write(buf, le, e.typ)
			_ = binary.Write(buf, le, e.count)
			if len(e.data) <= 4 {
				v := make([]byte, 4)
				copy(v, e.data)
				buf.Write(v)
				return
			}
			_ = binary.Write(buf, le, dataOff+uint32(data.Len()))
			data.Write(e.data)
			if data.Len()%2 == 1 {
				data.WriteByte(0)
			}
		}
		for _, e := range es {
			put(e)
		}
		if extra != nil {
			put(*extra)
		}
		_ = binary.Write(buf, le, uint32(0)) // next IFD
	}

	var tiff bytes.Buffer
	tiff.WriteString("II")
	_ = binary.Write(&tiff, le, uint16(42))
	_ = binary.Write(&tiff, le, ifd0Off)

	var ptr *entry
	if hasSub {
		b := make([]byte, 4)
		le.PutUint32(b, subOff)
		ptr = &entry{tag: 0x8769, typ: 4, count: 1, data: b}
	}
	writeIFD(&tiff, ifd0, ptr)
	if hasSub {
		writeIFD(&tiff, sub, nil)
	}
	tiff.Write(data.Bytes())

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	seg := []byte{0xff, 0xe1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}
