package meta

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	exiftool "github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// key 是与具体解析库无关的逻辑标签名。
type key int

const (
	keyDateTimeOriginal key = iota
	keyDateTimeDigitized
	keySubSecOriginal
	keySubSecDigitized
	keyOffsetOriginal
	keyOffsetDigitized
	keyOrientation
	keyWidth
	keyHeight
	keyMake
	keyModel
	keyResolutionX
	keyResolutionY
	keyResolutionUnit
)

// tagSource 屏蔽 goexif 与 exiftool 的差异：取不到（或类型不符）时 ok=false。
type tagSource interface {
	str(k key) (string, bool)
	num(k key) (float64, bool)
	raw() ([]byte, error)
}

var exifFieldNames = map[key]exif.FieldName{
	keyDateTimeOriginal:  exif.DateTimeOriginal,
	keyDateTimeDigitized: exif.DateTimeDigitized,
	keySubSecOriginal:    exif.SubSecTimeOriginal,
	keySubSecDigitized:   exif.SubSecTimeDigitized,
	keyOrientation:       exif.Orientation,
	keyWidth:             exif.PixelXDimension,
	keyHeight:            exif.PixelYDimension,
	keyMake:              exif.Make,
	keyModel:             exif.Model,
	keyResolutionX:       exif.XResolution,
	keyResolutionY:       exif.YResolution,
	keyResolutionUnit:    exif.ResolutionUnit,
}

// goexif 不认识 EXIF 2.31 的时区偏移标签，需要直接从 Exif 子 IFD 读取。
const (
	tagOffsetTimeOriginal  uint16 = 0x9011
	tagOffsetTimeDigitized uint16 = 0x9012
)

type exifSource struct {
	x       *exif.Exif
	offsets map[uint16]string
}

func decodeExif(r io.Reader) (*exifSource, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return nil, err
	}
	return &exifSource{x: x, offsets: readOffsetTags(x)}, nil
}

func (s *exifSource) str(k key) (string, bool) {
	switch k {
	case keyOffsetOriginal:
		v, ok := s.offsets[tagOffsetTimeOriginal]
		return v, ok
	case keyOffsetDigitized:
		v, ok := s.offsets[tagOffsetTimeDigitized]
		return v, ok
	}
	name, ok := exifFieldNames[k]
	if !ok {
		return "", false
	}
	tag, err := s.x.Get(name)
	if err != nil {
		return "", false
	}
	v, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	v = cleanString(v)
	return v, v != ""
}

func (s *exifSource) num(k key) (float64, bool) {
	name, ok := exifFieldNames[k]
	if !ok {
		return 0, false
	}
	tag, err := s.x.Get(name)
	if err != nil || tag.Count == 0 {
		return 0, false
	}
	switch tag.Format() {
	case tiff.IntVal:
		v, err := tag.Int64(0)
		if err != nil {
			return 0, false
		}
		return float64(v), true
	case tiff.RatVal:
		n, d, err := tag.Rat2(0)
		if err != nil || d == 0 {
			return 0, false
		}
		return float64(n) / float64(d), true
	case tiff.FloatVal:
		v, err := tag.Float(0)
		if err != nil {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

func (s *exifSource) raw() ([]byte, error) { return s.x.MarshalJSON() }

// readOffsetTags 读取 Exif 子 IFD 中的 OffsetTime* 标签；任何失败都视为不存在。
func readOffsetTags(x *exif.Exif) map[uint16]string {
	out := map[uint16]string{}
	ptr, err := x.Get(exif.ExifIFDPointer)
	if err != nil {
		return out
	}
	off, err := ptr.Int64(0)
	if err != nil || x.Tiff == nil {
		return out
	}
	r := bytes.NewReader(x.Raw)
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return out
	}
	dir, _, err := tiff.DecodeDir(r, x.Tiff.Order)
	if err != nil {
		return out
	}
	for _, tag := range dir.Tags {
		if tag.Id != tagOffsetTimeOriginal && tag.Id != tagOffsetTimeDigitized {
			continue
		}
		if v, err := tag.StringVal(); err == nil {
			if v = cleanString(v); v != "" {
				out[tag.Id] = v
			}
		}
	}
	return out
}

var exiftoolFieldNames = map[key]string{
	keyDateTimeOriginal:  "DateTimeOriginal",
	keyDateTimeDigitized: "CreateDate",
	keySubSecOriginal:    "SubSecTimeOriginal",
	keySubSecDigitized:   "SubSecTimeDigitized",
	keyOffsetOriginal:    "OffsetTimeOriginal",
	keyOffsetDigitized:   "OffsetTimeDigitized",
	keyOrientation:       "Orientation",
	keyWidth:             "ImageWidth",
	keyHeight:            "ImageHeight",
	keyMake:              "Make",
	keyModel:             "Model",
	keyResolutionX:       "XResolution",
	keyResolutionY:       "YResolution",
	keyResolutionUnit:    "ResolutionUnit",
}

// exiftoolSource 要求 exiftool 以 -n（NoPrintConversion）运行，数值字段才是数字。
type exiftoolSource struct {
	fm exiftool.FileMetadata
}

func (s exiftoolSource) str(k key) (string, bool) {
	name, ok := exiftoolFieldNames[k]
	if !ok {
		return "", false
	}
	v, err := s.fm.GetString(name)
	if err != nil {
		return "", false
	}
	v = cleanString(v)
	return v, v != ""
}

func (s exiftoolSource) num(k key) (float64, bool) {
	name, ok := exiftoolFieldNames[k]
	if !ok {
		return 0, false
	}
	v, err := s.fm.GetFloat(name)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s exiftoolSource) raw() ([]byte, error) { return json.Marshal(s.fm.Fields) }

func cleanString(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
