package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/photiso/internal/app/planner"
	"github.com/John-Robertt/photiso/internal/domain"
)

// FileName 是工作目录下默认读取的配置文件名。
const FileName = "photiso.toml"

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示需要 from/to 的命令缺少对应字段。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	DefaultMode           = domain.ActionMove
	DefaultMaxConflicts   = 999
	DefaultThumbnailWidth = 400
	DefaultLogLevel       = "info"
	// DefaultDuplicatesName 是重复照片目录在 to 下的默认名字。
	DefaultDuplicatesName = "Duplicates"
)

// CLIArgs 是 CLI 暴露的入口参数，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config 中的 apply = true。
type CLIArgs struct {
	// ConfigPath 非空时必须存在；为空时读取 <cwd>/photiso.toml（可选）。
	ConfigPath string

	From       string
	To         string
	Duplicates string

	Mode    string
	ModeSet bool

	Apply    bool
	ApplySet bool

	LogLevel string
	StateDB  string
}

// FileConfig 对应 photiso.toml 的解析结构。
// 指针字段用于区分“未填写”与“显式填写了零值”。
type FileConfig struct {
	From       string `toml:"from"`
	To         string `toml:"to"`
	Duplicates string `toml:"duplicates"`

	DirectoryPattern       string `toml:"directory_pattern"`
	FileNamePattern        string `toml:"file_name_pattern"`
	EnableDirectoryPattern *bool  `toml:"enable_directory_pattern"`
	EnableFileNamePattern  *bool  `toml:"enable_file_name_pattern"`

	Mode         string `toml:"mode"`
	FoldCase     *bool  `toml:"fold_case"`
	Apply        *bool  `toml:"apply"`
	MaxConflicts int    `toml:"max_conflicts"`

	ThumbnailWidth int    `toml:"thumbnail_width"`
	StateDB        string `toml:"state_db"`
	LogLevel       string `toml:"log_level"`
	LogFile        string `toml:"log_file"`
	Exiftool       bool   `toml:"exiftool"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
// 所有路径都是 clean + absolute（未配置时为空）。
type EffectiveConfig struct {
	ConfigPath string // 实际读取的配置文件；没有时为空

	From       string
	To         string
	Duplicates string

	DirectoryPattern       string
	FileNamePattern        string
	EnableDirectoryPattern bool
	EnableFileNamePattern  bool

	Mode         domain.ActionKind
	FoldCase     bool
	Apply        bool
	MaxConflicts int

	ThumbnailWidth int
	StateDB        string
	LogLevel       string
	LogFile        string
	Exiftool       bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 给了 --config：必须存在
// 2) 否则读取 <cwd>/photiso.toml（可选）
//
// 覆盖优先级：CLI（显式指定）> 配置文件 > 内置默认。
// 配置文件中的相对路径以配置文件所在目录为基准；CLI 的相对路径以 cwd 为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		p := cfgPath
		if p == "" {
			p = "<cli>"
		}
		return &Error{Code: ErrCodeInvalid, Path: p, Err: fmt.Errorf(format, args...)}
	}

	fileBase := cwdAbs
	if cfgPath != "" {
		fileBase = filepath.Dir(cfgPath)
	}
	pick := func(cliVal, fileVal string) string {
		if strings.TrimSpace(cliVal) != "" {
			return absCleanFrom(cwdAbs, cliVal)
		}
		if strings.TrimSpace(fileVal) != "" {
			return absCleanFrom(fileBase, fileVal)
		}
		return ""
	}

	eff := EffectiveConfig{
		ConfigPath:             cfgPath,
		From:                   pick(cli.From, fc.From),
		To:                     pick(cli.To, fc.To),
		Duplicates:             pick(cli.Duplicates, fc.Duplicates),
		DirectoryPattern:       orDefault(fc.DirectoryPattern, planner.DefaultDirectoryPattern),
		FileNamePattern:        orDefault(fc.FileNamePattern, planner.DefaultFileNamePattern),
		EnableDirectoryPattern: boolOr(fc.EnableDirectoryPattern, true),
		EnableFileNamePattern:  boolOr(fc.EnableFileNamePattern, false),
		FoldCase:               boolOr(fc.FoldCase, true),
		Apply:                  boolOr(fc.Apply, false),
		MaxConflicts:           fc.MaxConflicts,
		ThumbnailWidth:         fc.ThumbnailWidth,
		StateDB:                pick(cli.StateDB, fc.StateDB),
		LogLevel:               orDefault(fc.LogLevel, DefaultLogLevel),
		LogFile:                pick("", fc.LogFile),
		Exiftool:               fc.Exiftool,
	}
	if cli.ApplySet {
		eff.Apply = cli.Apply
	}
	if strings.TrimSpace(cli.LogLevel) != "" {
		eff.LogLevel = cli.LogLevel
	}

	mode := string(DefaultMode)
	if cli.ModeSet {
		mode = cli.Mode
	} else if strings.TrimSpace(fc.Mode) != "" {
		mode = fc.Mode
	}
	k, ok := domain.ParseActionKind(strings.ToLower(strings.TrimSpace(mode)))
	if !ok {
		return EffectiveConfig{}, invalid("mode 只能是 move 或 copy，实际是 %q", mode)
	}
	eff.Mode = k

	// max_conflicts：默认 999；超出 [1, 999] 截断。
	if eff.MaxConflicts == 0 {
		eff.MaxConflicts = DefaultMaxConflicts
	}
	if eff.MaxConflicts < 1 {
		eff.MaxConflicts = 1
	}
	if eff.MaxConflicts > DefaultMaxConflicts {
		eff.MaxConflicts = DefaultMaxConflicts
	}

	if eff.ThumbnailWidth == 0 {
		eff.ThumbnailWidth = DefaultThumbnailWidth
	}
	if eff.ThumbnailWidth < 16 || eff.ThumbnailWidth > 4096 {
		return EffectiveConfig{}, invalid("thumbnail_width 超出范围 [16, 4096]：%d", eff.ThumbnailWidth)
	}

	if _, err := logrus.ParseLevel(eff.LogLevel); err != nil {
		return EffectiveConfig{}, invalid("log_level 无效：%v", err)
	}

	if _, err := eff.DestinationPattern(); err != nil {
		return EffectiveConfig{}, invalid("%v", err)
	}

	if eff.Duplicates == "" && eff.To != "" {
		eff.Duplicates = filepath.Join(eff.To, DefaultDuplicatesName)
	}
	if eff.Duplicates != "" {
		if eff.samePath(eff.Duplicates, eff.From) {
			return EffectiveConfig{}, invalid("duplicates 不能与 from 相同：%q", eff.Duplicates)
		}
		if eff.samePath(eff.Duplicates, eff.To) {
			return EffectiveConfig{}, invalid("duplicates 不能与 to 相同：%q", eff.Duplicates)
		}
	}

	if eff.StateDB == "" {
		eff.StateDB = defaultStateDB()
	}
	return eff, nil
}

// RequireRoots 校验整理类命令所需的 from/to 已配置。
func (e EffectiveConfig) RequireRoots() error {
	var missing []string
	if e.From == "" {
		missing = append(missing, "from")
	}
	if e.To == "" {
		missing = append(missing, "to")
	}
	if len(missing) == 0 {
		return nil
	}
	return &Error{Code: ErrCodeMissingPath, Path: e.ConfigPath, Err: fmt.Errorf("缺少必填字段：%s", strings.Join(missing, ", "))}
}

// DestinationPattern 编译已启用的日期模式。
func (e EffectiveConfig) DestinationPattern() (planner.DestinationPattern, error) {
	return planner.NewDestinationPattern(e.DirectoryPattern, e.EnableDirectoryPattern, e.FileNamePattern, e.EnableFileNamePattern)
}

func (e EffectiveConfig) samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if e.FoldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func defaultStateDB() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "photiso", "state.db")
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute（支持 ~/ 前缀）。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if _, err := toml.Decode(string(b), &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
