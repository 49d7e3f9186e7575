package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// New 创建 CLI 使用的 logger。
//
// - 默认写 stderr（stdout 保留给 report JSON）
// - file 非空时追加写入该文件（目录按需创建），返回的 closer 负责关闭
func New(level, file string) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		FullTimestamp:    true,
		TimestampFormat:  "15:04:05",
		DisableQuote:     true,
		QuoteEmptyFields: true,
	})

	lv := strings.TrimSpace(level)
	if lv == "" {
		lv = "info"
	}
	parsed, err := logrus.ParseLevel(lv)
	if err != nil {
		return nil, nil, fmt.Errorf("log_level 无效：%q", level)
	}
	l.SetLevel(parsed)

	file = strings.TrimSpace(file)
	if file == "" {
		return l, io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("打开日志文件失败：%w", err)
	}
	l.SetOutput(f)
	return l, f, nil
}

// Discard 返回一个丢弃所有输出的 logger（库的默认值 / 测试）。
func Discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// OrDiscard：l 为 nil 时返回 Discard()。
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}
