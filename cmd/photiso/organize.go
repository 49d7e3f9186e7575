package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/photiso/internal/app/run"
	"github.com/John-Robertt/photiso/internal/config"
	"github.com/John-Robertt/photiso/internal/domain"
)

var organizeFlags struct {
	to         string
	duplicates string
	mode       string
	copy       bool
	apply      bool
}

var organizeCmd = &cobra.Command{
	Use:   "organize [from]",
	Short: "整理整个目录（默认 dry-run）",
	Long: `按拍摄时间整理 from 下的所有照片到 to。

默认只做 dry-run：输出每个文件将被放到哪里，不做任何写入。
--apply 才会真正移动/复制，并写入 <to>/.photiso/report.json。
文件名（不含扩展名）包含 '!' 的照片保持原位。

stdout 不是终端时只输出一个 RunReport JSON。`,
	Example: `  photiso organize ~/Inbox --to ~/Pictures
  photiso organize --copy --apply
  photiso organize ~/Inbox --apply=false`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOrganize,
}

func init() {
	rootCmd.AddCommand(organizeCmd)

	f := organizeCmd.Flags()
	f.StringVar(&organizeFlags.to, "to", "", "整理后的根目录")
	f.StringVar(&organizeFlags.duplicates, "duplicates", "", "重复照片目录（默认 <to>/Duplicates）")
	f.StringVar(&organizeFlags.mode, "mode", "", "move|copy")
	f.BoolVar(&organizeFlags.copy, "copy", false, "复制而不是移动（等价于 --mode=copy）")
	f.BoolVar(&organizeFlags.apply, "apply", false, "执行写入（默认 dry-run）；支持 --apply=false 覆盖配置中的 apply = true")
}

func runOrganize(cmd *cobra.Command, args []string) error {
	cli := config.CLIArgs{
		To:         organizeFlags.to,
		Duplicates: organizeFlags.duplicates,
		Apply:      organizeFlags.apply,
		ApplySet:   cmd.Flags().Changed("apply"),
	}
	if len(args) == 1 {
		cli.From = args[0]
	}
	switch {
	case cmd.Flags().Changed("mode"):
		cli.Mode, cli.ModeSet = organizeFlags.mode, true
	case organizeFlags.copy:
		cli.Mode, cli.ModeSet = string(domain.ActionCopy), true
	}

	eff, err := loadEffectiveWithRoots(cli)
	if err != nil {
		emitReport(reportForConfigError(cli, err))
		return exitError{code: 1}
	}

	log, closer, err := newLogger(eff)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressW, interactive := pickProgressWriter()
	opts := run.Options{Logger: log}
	if interactive {
		opts.Observer = newProgressUI(progressW)
	}

	rr := run.Execute(ctx, eff, opts)

	// apply：写入 <to>/.photiso/report.json；dry-run 禁止落盘。
	if eff.Apply {
		if err := writeReportFile(eff, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
			emitReport(rr)
			return exitError{code: 1}
		}
		rememberRoots(eff)
	}

	emitReport(rr)
	if interactive && eff.Apply {
		fmt.Fprintf(progressW, "report: %s\n", run.ReportPath(eff))
	}
	if rr.Summary.Failed == 0 && !rr.Canceled {
		return nil
	}
	return exitError{code: 1}
}
