package domain

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

// PhotoRecord 描述一张照片的元数据快照（构造后不可变）。
//
// 不变量：
// - Path 必须是 clean + absolute，是记录的唯一主键
// - Taken 只来自照片内嵌元数据；缺失时为 nil（由 BestTime 兜底到文件时间）
// - 内容哈希不属于 PhotoRecord：只在发生命名冲突时按需计算
type PhotoRecord struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`

	Taken    *time.Time `json:"taken,omitempty"`
	Created  time.Time  `json:"created"`
	Modified time.Time  `json:"modified"`

	Orientation *Orientation `json:"orientation,omitempty"`
	Width       int          `json:"width,omitempty"`
	Height      int          `json:"height,omitempty"`

	Make        string  `json:"make,omitempty"`
	Model       string  `json:"model,omitempty"`
	ResolutionX float64 `json:"resolution_x,omitempty"`
	ResolutionY float64 `json:"resolution_y,omitempty"`

	// Raw 是原始元数据（仅用于展示，不参与任何判定）。
	Raw json.RawMessage `json:"raw,omitempty"`
}

// BestTime 返回用于归档的时间：优先拍摄时间，否则取创建/修改时间中较早者。
// 三者都缺失时返回零值。
func (r PhotoRecord) BestTime() time.Time {
	if r.Taken != nil && !r.Taken.IsZero() {
		return *r.Taken
	}
	switch {
	case r.Created.IsZero():
		return r.Modified
	case r.Modified.IsZero():
		return r.Created
	case r.Created.Before(r.Modified):
		return r.Created
	default:
		return r.Modified
	}
}

// Orientation 是 EXIF 方向码（1..8）规范化后的结果。
type Orientation struct {
	Rotation int  `json:"rotation"` // 0 | 90 | 180 | 270
	Mirrored bool `json:"mirrored"`
}

var (
	orientationRotations = [8]int{0, 0, 180, 180, 270, 270, 90, 90}
	orientationMirrored  = [8]bool{false, true, false, true, true, false, true, false}
)

// OrientationFromEXIF 把 EXIF 方向码映射为 (rotation, mirrored)。
// 1..8 以外的值返回 ok=false。
func OrientationFromEXIF(code int) (Orientation, bool) {
	if code < 1 || code > 8 {
		return Orientation{}, false
	}
	return Orientation{
		Rotation: orientationRotations[code-1],
		Mirrored: orientationMirrored[code-1],
	}, true
}

// photoExts 是可识别的照片扩展名（小写比较）。
var photoExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
	".wmp":  {},
	".heic": {},
	".webp": {},
}

// IsPhotoExt 判断扩展名（含 '.'，大小写不敏感）是否为可识别的照片扩展名。
func IsPhotoExt(ext string) bool {
	_, ok := photoExts[strings.ToLower(ext)]
	return ok
}

// IsPhotoFile 按文件名扩展名判断是否为照片。
func IsPhotoFile(name string) bool {
	return IsPhotoExt(filepath.Ext(name))
}
