//go:build !unix

package fsx

import (
	"errors"
	"os"
)

func isEXDEV(err error) bool { return false }

// 非 unix 平台上（例如跨卷的 NTFS 硬链接）统一退化为复制。
func linkUnsupported(err error) bool {
	if errors.Is(err, os.ErrExist) {
		return false
	}
	var le *os.LinkError
	return errors.As(err, &le) || errors.Is(err, errors.ErrUnsupported)
}
