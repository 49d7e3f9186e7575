//go:build !linux && !darwin && !windows

package meta

import (
	"os"
	"time"
)

// 其它平台没有可移植的创建时间：返回零值，由 BestTime 退化为修改时间。
func birthTime(string, os.FileInfo) time.Time { return time.Time{} }
