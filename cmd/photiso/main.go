package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/photiso/internal/app/run"
	"github.com/John-Robertt/photiso/internal/config"
	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/fsx"
	"github.com/John-Robertt/photiso/internal/infra/logx"
)

var (
	configPath string
	logLevel   string
	stateDB    string
)

// exitError 让子命令在已经输出结果后指定退出码（不再打印错误）。
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

var rootCmd = &cobra.Command{
	Use:   "photiso",
	Short: "按拍摄时间整理照片",
	Long: `photiso 按拍摄时间把照片整理到目标目录。

移动/复制从不覆盖已有文件：同名不同内容时追加 _001 这样的后缀，
内容完全相同时转入重复照片目录（<duplicates>/<digest>/）。`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径（默认读取 ./"+config.FileName+"，可选）")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别：debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&stateDB, "state-db", "", "状态数据库路径（默认 ~/.config/photiso/state.db）")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "错误：%v\n", err)
		os.Exit(1)
	}
}

// loadEffective 合并配置文件与当前命令的全局参数；cli 由子命令预先填好自己的字段。
func loadEffective(cli config.CLIArgs) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取当前目录失败：%w", err)
	}
	cli.ConfigPath = configPath
	cli.LogLevel = logLevel
	cli.StateDB = stateDB
	return config.LoadEffective(cwd, cli)
}

// newLogger 按配置创建 logger；返回的 closer 必须在退出前调用。
func newLogger(eff config.EffectiveConfig) (*logrus.Logger, io.Closer, error) {
	return logx.New(eff.LogLevel, eff.LogFile)
}

func emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("完成：moved=%d duplicate_moved=%d noop=%d skipped=%d failed=%d non_photos=%d",
		rr.Summary.Moved, rr.Summary.DuplicateMoved, rr.Summary.NoOp, rr.Summary.Skipped, rr.Summary.Failed, rr.NonPhotos,
	)
	if rr.Canceled {
		summary += "（已取消）"
	}

	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summary)
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			key := it.Src
			if key == "" {
				key = "<run>"
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(os.Stderr, summary)
}

func reportForConfigError(cli config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	code := config.Code(err)
	if code == "" {
		code = config.ErrCodeInvalid
	}
	rr := domain.RunReport{
		From:       cli.From,
		To:         cli.To,
		DryRun:     !(cli.ApplySet && cli.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(eff config.EffectiveConfig, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	p := run.ReportPath(eff)
	return fsx.WriteFileAtomic(filepath.Dir(p), filepath.Base(p), b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

// printJSON 在 stdout 输出缩进 JSON（info/history 的非 TTY 形态）。
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
