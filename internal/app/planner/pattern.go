package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/vjeantet/jodaTime"
)

// Pattern 是校验过的日期模式（Joda/LDML 风格，例如 "yyyy/MM" 或 "'IMG_'yyyy-MM-dd"），
// 格式化交给 jodaTime。
//
// 支持的字段：
//
//	y yy yyyy  年（yy 为两位）
//	M MM MMM MMMM  月（MMM/MMMM 为英文缩写/全称）
//	d dd  日
//	H HH  时（0-23）
//	m mm  分
//	s ss  秒
//	SSS  毫秒
//
// 单引号内为原样文本；其它非字母字符原样输出。
type Pattern struct {
	src string
}

// Compile 校验模式。空模式、未闭合的引号、不支持的字段字母都是错误。
func Compile(src string) (Pattern, error) {
	if strings.TrimSpace(src) == "" {
		return Pattern{}, fmt.Errorf("日期模式为空")
	}

	rs := []rune(src)
	for i := 0; i < len(rs); {
		c := rs[i]
		switch {
		case c == '\'':
			j := i + 1
			for j < len(rs) && rs[j] != '\'' {
				j++
			}
			if j >= len(rs) {
				return Pattern{}, fmt.Errorf("日期模式 %q：引号未闭合", src)
			}
			i = j + 1
		case isLetter(c):
			j := i
			for j < len(rs) && rs[j] == c {
				j++
			}
			if !knownField(c, j-i) {
				return Pattern{}, fmt.Errorf("日期模式 %q：不支持的字段 %q", src, string(rs[i:j]))
			}
			i = j
		default:
			i++
		}
	}
	return Pattern{src: src}, nil
}

func (p Pattern) String() string { return p.src }

// Format 按模式格式化 t（使用 t 自身的时区）。
func (p Pattern) Format(t time.Time) string {
	return jodaTime.Format(p.src, t)
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func knownField(c rune, width int) bool {
	switch c {
	case 'y':
		return width == 2 || width == 4 || width == 1
	case 'M':
		return width <= 4
	case 'd', 'H', 'm', 's':
		return width <= 2
	case 'S':
		return width == 3
	}
	return false
}
