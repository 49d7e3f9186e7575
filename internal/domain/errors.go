package domain

import (
	"errors"
	"fmt"
)

// Kind 是引擎对外的错误分类（同时作为 report 的 error_code）。
type Kind string

const (
	KindDirectoryNotFound Kind = "directory_not_found"
	KindNotAPhoto         Kind = "not_a_photo"
	KindReadError         Kind = "read_error"
	KindDestinationExists Kind = "destination_exists"
	KindTooManyConflicts  Kind = "too_many_conflicts"
	KindIOError           Kind = "io_error"
	KindUnsupportedUndo   Kind = "unsupported_undo"
)

// Error 是带分类与出错路径的结构化错误。
// 只有 start 阶段的 DirectoryNotFound 会终止整个遍历，其余都是单文件级。
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := kindText(e.Kind)
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s：%q：%v", msg, e.Path, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s：%q", msg, e.Path)
	case e.Err != nil:
		return fmt.Sprintf("%s：%v", msg, e.Err)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrTooManyConflicts) 这类判断按 Kind 匹配。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrDirectoryNotFound = &Error{Kind: KindDirectoryNotFound}
	ErrNotAPhoto         = &Error{Kind: KindNotAPhoto}
	ErrReadError         = &Error{Kind: KindReadError}
	ErrDestinationExists = &Error{Kind: KindDestinationExists}
	ErrTooManyConflicts  = &Error{Kind: KindTooManyConflicts}
	ErrIOError           = &Error{Kind: KindIOError}
	ErrUnsupportedUndo   = &Error{Kind: KindUnsupportedUndo}
)

// E 构造一个分类错误。err 已经是 *Error 时原样返回（避免重复包装）。
func E(kind Kind, path string, err error) error {
	var de *Error
	if err != nil && errors.As(err, &de) {
		return err
	}
	return &Error{Kind: kind, Path: path, Err: err}
}

// KindOf 提取错误分类；不是 *Error 时返回空串。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func kindText(k Kind) string {
	switch k {
	case KindDirectoryNotFound:
		return "目录不存在"
	case KindNotAPhoto:
		return "不是可识别的照片"
	case KindReadError:
		return "读取照片元数据失败"
	case KindDestinationExists:
		return "目标文件已存在"
	case KindTooManyConflicts:
		return "目标文件名冲突过多"
	case KindIOError:
		return "文件操作失败"
	case KindUnsupportedUndo:
		return "该动作不支持撤销"
	default:
		return string(k)
	}
}
