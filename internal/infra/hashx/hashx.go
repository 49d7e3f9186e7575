package hashx

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// File 流式计算文件内容的 SHA-256（小写十六进制），不把整个文件读入内存。
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f)
}

// Reader 流式计算 r 的 SHA-256（小写十六进制）。
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SameContent 判断 a 与 b 是否逐字节相同。
//
// 先比较文件大小：大小不同直接判定不同，不做任何哈希。
// 相同时返回共同的摘要；不同时 digest 为空。
func SameContent(a, b string) (digest string, same bool, err error) {
	ai, err := os.Stat(a)
	if err != nil {
		return "", false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return "", false, err
	}
	if ai.Size() != bi.Size() {
		return "", false, nil
	}

	ha, err := File(a)
	if err != nil {
		return "", false, err
	}
	hb, err := File(b)
	if err != nil {
		return "", false, err
	}
	if ha != hb {
		return "", false, nil
	}
	return ha, true, nil
}
