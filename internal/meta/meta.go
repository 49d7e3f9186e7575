package meta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	exiftool "github.com/barasher/go-exiftool"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/imgx"
	"github.com/John-Robertt/photiso/internal/infra/logx"
)

// Options 是元数据解析器的配置。
type Options struct {
	Logger logrus.FieldLogger
	// Location 是无时区信息的拍摄时间所使用的时区；nil 表示 time.Local。
	Location *time.Location
	// Exiftool：goexif 解析失败时，是否调用外部 exiftool 兜底（HEIC 等容器）。
	Exiftool bool
}

// Resolver 从照片文件构造 PhotoRecord。可并发使用。
type Resolver struct {
	log logrus.FieldLogger
	loc *time.Location

	// exiftool 进程是有状态的管道：同一时刻只允许一个请求。
	mu sync.Mutex
	et *exiftool.Exiftool
}

// New 创建解析器。开启 Exiftool 但本机不可用时返回错误。
func New(opts Options) (*Resolver, error) {
	r := &Resolver{
		log: logx.OrDiscard(opts.Logger),
		loc: opts.Location,
	}
	if r.loc == nil {
		r.loc = time.Local
	}
	if opts.Exiftool {
		et, err := exiftool.NewExiftool(exiftool.NoPrintConversion())
		if err != nil {
			return nil, fmt.Errorf("启动 exiftool 失败：%w", err)
		}
		r.et = et
	}
	return r, nil
}

// Close 释放 exiftool 进程（未开启时为 no-op）。
func (r *Resolver) Close() error {
	if r.et == nil {
		return nil
	}
	return r.et.Close()
}

// Resolve 读取 path 的元数据。
//
// 错误：
// - 扩展名不可识别：NotAPhoto
// - 文件无法打开/stat：ReadError
//
// 元数据缺失或损坏不是错误：拍摄时间退化为文件时间（记录日志）。
func (r *Resolver) Resolve(path string) (domain.PhotoRecord, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.PhotoRecord{}, domain.E(domain.KindReadError, path, err)
	}
	if !domain.IsPhotoFile(abs) {
		return domain.PhotoRecord{}, domain.E(domain.KindNotAPhoto, abs, nil)
	}

	fi, err := os.Lstat(abs)
	if err != nil {
		return domain.PhotoRecord{}, domain.E(domain.KindReadError, abs, err)
	}
	if !fi.Mode().IsRegular() {
		return domain.PhotoRecord{}, domain.E(domain.KindReadError, abs, errors.New("不是普通文件"))
	}

	rec := domain.PhotoRecord{
		Path:      abs,
		SizeBytes: fi.Size(),
		Created:   birthTime(abs, fi),
		Modified:  fi.ModTime(),
	}

	src, err := r.source(abs)
	if err != nil {
		return domain.PhotoRecord{}, domain.E(domain.KindReadError, abs, err)
	}
	if src != nil {
		r.fill(&rec, src)
	}

	if rec.Width == 0 || rec.Height == 0 {
		if w, h, _, err := imgx.DecodeConfig(abs); err == nil {
			rec.Width, rec.Height = w, h
		}
	}
	return rec, nil
}

// source 依次尝试 goexif 与 exiftool；都没有元数据时返回 (nil, nil)。
// 只有打开文件失败才返回错误。
func (r *Resolver) source(path string) (tagSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	xs, exifErr := decodeExif(f)
	if exifErr == nil {
		return xs, nil
	}
	if r.et == nil {
		r.log.WithField("path", path).WithError(exifErr).Debug("照片不含可解析的 EXIF")
		return nil, nil
	}

	r.mu.Lock()
	fms := r.et.ExtractMetadata(path)
	r.mu.Unlock()
	if len(fms) == 0 || fms[0].Err != nil {
		r.log.WithField("path", path).Debug("exiftool 未提取到元数据")
		return nil, nil
	}
	return exiftoolSource{fm: fms[0]}, nil
}

func (r *Resolver) fill(rec *domain.PhotoRecord, src tagSource) {
	log := r.log.WithField("path", rec.Path)

	var taken *time.Time
	for _, c := range []struct{ dt, sub, off key }{
		{keyDateTimeOriginal, keySubSecOriginal, keyOffsetOriginal},
		{keyDateTimeDigitized, keySubSecDigitized, keyOffsetDigitized},
	} {
		s, ok := src.str(c.dt)
		if !ok {
			continue
		}
		sub, _ := src.str(c.sub)
		off, _ := src.str(c.off)
		t, err := ParseCaptureTime(s, sub, off, r.loc)
		if err != nil {
			log.WithError(err).Warn("拍摄时间无效，退化为文件时间")
			continue
		}
		if taken == nil || t.Before(*taken) {
			tt := t
			taken = &tt
		}
	}
	rec.Taken = taken

	if v, ok := src.num(keyOrientation); ok {
		if o, ok := domain.OrientationFromEXIF(int(v)); ok {
			rec.Orientation = &o
		}
	}
	if v, ok := src.num(keyWidth); ok && v > 0 {
		rec.Width = int(v)
	}
	if v, ok := src.num(keyHeight); ok && v > 0 {
		rec.Height = int(v)
	}
	rec.Make, _ = src.str(keyMake)
	rec.Model, _ = src.str(keyModel)

	// ResolutionUnit=3 表示每厘米，统一换算为每英寸。
	perCM := false
	if v, ok := src.num(keyResolutionUnit); ok && int(v) == 3 {
		perCM = true
	}
	if v, ok := src.num(keyResolutionX); ok {
		rec.ResolutionX = resolution(v, perCM)
	}
	if v, ok := src.num(keyResolutionY); ok {
		rec.ResolutionY = resolution(v, perCM)
	}

	if raw, err := src.raw(); err == nil {
		rec.Raw = raw
	} else {
		log.WithError(err).Debug("序列化原始元数据失败")
	}
}

func resolution(v float64, perCM bool) float64 {
	if perCM {
		return v / 2.54
	}
	return v
}

var (
	captureLayouts = []string{
		"2006:01:02 15:04:05",
		"2006-01-02 15:04:05",
		"2006:01:02T15:04:05",
	}
	subSecDigits = regexp.MustCompile(`^[0-9]+$`)
)

// ParseCaptureTime 解析 EXIF 拍摄时间。
//
//   - subSec 是小数秒的数字串（例如 "123" 表示 .123 秒），无效时忽略
//   - offset 形如 "+08:00"；为空或无效时按 loc 解释
func ParseCaptureTime(dt, subSec, offset string, loc *time.Location) (time.Time, error) {
	dt = cleanString(dt)
	if dt == "" {
		return time.Time{}, errors.New("拍摄时间为空")
	}
	if loc == nil {
		loc = time.Local
	}
	if z, ok := parseOffset(offset); ok {
		loc = z
	}

	var (
		t   time.Time
		err error
	)
	for _, layout := range captureLayouts {
		if len(dt) < len(layout) {
			continue
		}
		t, err = time.ParseInLocation(layout, dt[:len(layout)], loc)
		if err == nil {
			break
		}
	}
	if err != nil || t.IsZero() {
		return time.Time{}, fmt.Errorf("无法解析拍摄时间 %q", dt)
	}

	if sub := cleanString(subSec); subSecDigits.MatchString(sub) {
		if len(sub) > 9 {
			sub = sub[:9]
		}
		sub += strings.Repeat("0", 9-len(sub))
		if ns, err := strconv.Atoi(sub); err == nil {
			t = t.Add(time.Duration(ns))
		}
	}
	return t, nil
}

func parseOffset(s string) (*time.Location, bool) {
	s = cleanString(s)
	if s == "" {
		return nil, false
	}
	if s == "Z" {
		return time.UTC, true
	}
	t, err := time.Parse("-07:00", s)
	if err != nil {
		return nil, false
	}
	_, off := t.Zone()
	return time.FixedZone(s, off), true
}
