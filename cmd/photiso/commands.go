package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/photiso/internal/app/planner"
	"github.com/John-Robertt/photiso/internal/app/session"
	"github.com/John-Robertt/photiso/internal/config"
	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/imgx"
	"github.com/John-Robertt/photiso/internal/meta"
)

var (
	infoRaw       bool
	infoThumbnail bool
)

var infoCmd = &cobra.Command{
	Use:   "info FILE",
	Short: "显示照片元数据与默认目标位置",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "列出已记录的移动/复制（最新在前）",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var undoCmd = &cobra.Command{
	Use:   "undo [KEY]",
	Short: "撤销最近一次（或指定 KEY）的移动/复制",
	Long: `撤销一条已记录的动作：

  move：把文件不覆盖地移回原位置
  copy：删除副本（副本内容已变化时拒绝）

转入重复照片目录的动作不可撤销。`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUndo,
}

var suffixCmd = &cobra.Command{
	Use:   "suffix PATH",
	Short: "输出让 PATH 不冲突所需的后缀（不需要时输出空行）",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuffix,
}

func init() {
	rootCmd.AddCommand(infoCmd, historyCmd, undoCmd, suffixCmd)
	infoCmd.Flags().BoolVar(&infoRaw, "raw", false, "同时输出原始元数据")
	infoCmd.Flags().BoolVar(&infoThumbnail, "thumbnail", false, "同时输出缩略图（JPEG data URL，宽度取 thumbnail_width）")
}

func runInfo(cmd *cobra.Command, args []string) error {
	eff, err := loadEffective(config.CLIArgs{})
	if err != nil {
		return err
	}
	log, closer, err := newLogger(eff)
	if err != nil {
		return err
	}
	defer closer.Close()

	r, err := meta.New(meta.Options{Logger: log, Exiftool: eff.Exiftool})
	if err != nil {
		return err
	}
	defer r.Close()

	rec, err := r.Resolve(args[0])
	if err != nil {
		return err
	}
	if !infoRaw {
		rec.Raw = nil
	}

	var dest string
	if eff.To != "" {
		dp, err := eff.DestinationPattern()
		if err != nil {
			return err
		}
		dest = planner.ResolveDestination(rec, dp, eff.To, "").Path(0)
	}

	var thumb string
	if infoThumbnail {
		b, err := imgx.Thumbnail(rec.Path, eff.ThumbnailWidth, rec.Orientation)
		if err != nil {
			return fmt.Errorf("生成缩略图失败：%w", err)
		}
		thumb = imgx.DataURL(b)
	}

	if !isTTY(os.Stdout) {
		return printJSON(struct {
			domain.PhotoRecord
			Destination string `json:"destination,omitempty"`
			Thumbnail   string `json:"thumbnail,omitempty"`
		}{rec, dest, thumb})
	}

	w := os.Stdout
	fmt.Fprintf(w, "路径:     %s\n", rec.Path)
	fmt.Fprintf(w, "大小:     %s\n", humanize.IBytes(uint64(rec.SizeBytes)))
	if rec.Taken != nil {
		fmt.Fprintf(w, "拍摄时间: %s\n", rec.Taken.Format("2006-01-02 15:04:05.000 -07:00"))
	} else {
		fmt.Fprintf(w, "拍摄时间: （无，使用文件时间 %s）\n", rec.BestTime().Format("2006-01-02 15:04:05"))
	}
	if rec.Width > 0 && rec.Height > 0 {
		fmt.Fprintf(w, "尺寸:     %d×%d\n", rec.Width, rec.Height)
	}
	if rec.Orientation != nil {
		fmt.Fprintf(w, "方向:     旋转 %d°，镜像 %s\n", rec.Orientation.Rotation, onOff(rec.Orientation.Mirrored))
	}
	if cam := strings.TrimSpace(rec.Make + " " + rec.Model); cam != "" {
		fmt.Fprintf(w, "相机:     %s\n", cam)
	}
	if rec.ResolutionX > 0 {
		fmt.Fprintf(w, "分辨率:   %.0f×%.0f dpi\n", rec.ResolutionX, rec.ResolutionY)
	}
	if dest != "" {
		fmt.Fprintf(w, "默认目标: %s\n", dest)
	}
	if infoRaw && len(rec.Raw) > 0 {
		fmt.Fprintf(w, "原始元数据:\n%s\n", rec.Raw)
	}
	if thumb != "" {
		fmt.Fprintf(w, "缩略图:\n%s\n", thumb)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	eff, err := loadEffective(config.CLIArgs{})
	if err != nil {
		return err
	}
	s, err := openState(eff, true)
	if err != nil {
		return err
	}
	defer s.Close()

	items := s.history.Items()
	if !isTTY(os.Stdout) {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("（没有记录）")
		return nil
	}
	for _, it := range items {
		fmt.Printf("%d  %-4s  %-14s  %s -> %s%s\n",
			it.Key, it.Kind, humanize.Time(it.Timestamp), it.From, it.To, outcomeNote(it.Outcome))
	}
	return nil
}

func outcomeNote(o domain.Outcome) string {
	if o == domain.OutcomeDuplicateMoved {
		return "  (重复)"
	}
	return ""
}

func runUndo(cmd *cobra.Command, args []string) error {
	var key int64
	if len(args) == 1 {
		k, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || k <= 0 {
			return fmt.Errorf("KEY 必须是正整数：%q", args[0])
		}
		key = k
	}

	eff, err := loadEffective(config.CLIArgs{})
	if err != nil {
		return err
	}
	s, err := openState(eff, false)
	if err != nil {
		return err
	}
	defer s.Close()

	var (
		item domain.ActionHistoryItem
		ok   bool
	)
	if key == 0 {
		item, ok = s.history.FindMostRecent()
	} else {
		item, ok = s.history.FindByKey(key)
	}
	if !ok {
		return session.ErrNoSuchAction
	}

	if err := session.Revert(item); err != nil {
		if errors.Is(err, domain.ErrUnsupportedUndo) {
			// 不可撤销的记录留在账本中没有意义。
			s.history.Remove(item.Key)
			_ = s.saveHistory()
		}
		return err
	}
	s.history.Remove(item.Key)
	if err := s.saveHistory(); err != nil {
		return fmt.Errorf("已撤销，但保存账本失败：%w", err)
	}
	fmt.Printf("已撤销 %s：%s -> %s\n", item.Kind, item.To, item.From)
	return nil
}

func runSuffix(cmd *cobra.Command, args []string) error {
	eff, err := loadEffective(config.CLIArgs{})
	if err != nil {
		return err
	}
	suffix, err := planner.FindNonConflictingSuffix(args[0], eff.MaxConflicts)
	if err != nil {
		return err
	}
	fmt.Println(suffix)
	return nil
}
