package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/photiso/internal/app/session"
	"github.com/John-Robertt/photiso/internal/config"
	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/meta"
)

var browseCmd = &cobra.Command{
	Use:   "browse [from]",
	Short: "逐张浏览并整理照片（交互式）",
	Long: `逐张浏览 from 下的照片，按键移动/复制到默认目标位置，可随时撤销。

默认目标由拍摄时间与日期模式决定；未启用目录模式时使用最近使用的目录，
可用 r 在最近目录之间切换。移动/复制与撤销会记录到状态库，
之后可以用 "photiso history" / "photiso undo" 查看与撤销。`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

var browseTo string

func init() {
	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().StringVar(&browseTo, "to", "", "整理后的根目录")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cli := config.CLIArgs{To: browseTo}
	if len(args) == 1 {
		cli.From = args[0]
	}
	eff, err := loadEffectiveWithRoots(cli)
	if err != nil {
		return err
	}
	log, closer, err := newLogger(eff)
	if err != nil {
		return err
	}
	defer closer.Close()
	// TUI 占用终端：没有配置日志文件时丢弃日志输出。
	if eff.LogFile == "" {
		log.SetOutput(io.Discard)
	}

	r, err := meta.New(meta.Options{Logger: log, Exiftool: eff.Exiftool})
	if err != nil {
		return err
	}
	defer r.Close()

	sess, err := newSession(eff, r, log)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Start(eff.From); err != nil {
		return err
	}

	st, err := openState(eff, false)
	if err != nil {
		log.WithError(err).Warn("打开状态库失败，本次不记录历史")
		st = nil
	} else {
		defer st.Close()
		st.app.SetRoots(eff.From, eff.To)
		if err := st.saveApp(); err != nil {
			log.WithError(err).Warn("保存最近根目录失败")
		}
	}

	m := newBrowseModel(sess, st, eff)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func newSession(eff config.EffectiveConfig, r session.MetadataResolver, log logrus.FieldLogger) (*session.Session, error) {
	dp, err := eff.DestinationPattern()
	if err != nil {
		return nil, err
	}
	return session.New(session.Config{
		OrganizedRoot:  eff.To,
		DuplicatesDir:  eff.Duplicates,
		Pattern:        dp,
		FoldCase:       eff.FoldCase,
		MaxConflicts:   eff.MaxConflicts,
		ThumbnailWidth: eff.ThumbnailWidth,
		Logger:         log,
	}, r), nil
}

// ----- key bindings ----- //

type browseKeys struct {
	Next     key.Binding
	Prev     key.Binding
	Move     key.Binding
	Copy     key.Binding
	Undo     key.Binding
	Recent   key.Binding
	Favorite key.Binding
	Yank     key.Binding
	Preview  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k browseKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Move, k.Copy, k.Undo, k.Help, k.Quit}
}

func (k browseKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev},
		{k.Move, k.Copy, k.Undo},
		{k.Recent, k.Favorite, k.Yank, k.Preview},
		{k.Help, k.Quit},
	}
}

var defaultBrowseKeys = browseKeys{
	Next:     key.NewBinding(key.WithKeys("n", "right", "l", " "), key.WithHelp("→/n", "下一张")),
	Prev:     key.NewBinding(key.WithKeys("p", "left", "h"), key.WithHelp("←/p", "上一张")),
	Move:     key.NewBinding(key.WithKeys("m", "enter"), key.WithHelp("m", "移动")),
	Copy:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "复制")),
	Undo:     key.NewBinding(key.WithKeys("u", "ctrl+z"), key.WithHelp("u", "撤销")),
	Recent:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "切换最近目录")),
	Favorite: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "收藏目录")),
	Yank:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "复制目标路径")),
	Preview:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "导出预览图")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "帮助")),
	Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "退出")),
}

// ----- styles ----- //

var (
	browseTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	browseLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Width(10)
	browseDestStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("120")).Bold(true)
	browseOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	browseErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	browseDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// ----- messages ----- //

type photoLoadedMsg struct {
	path   string
	rec    domain.PhotoRecord
	dest   domain.Destination
	suffix string
	err    error
}

type placedMsg struct {
	kind domain.ActionKind
	pl   domain.Placement
	err  error
}

type undoneMsg struct {
	item domain.ActionHistoryItem
	err  error
}

type statusMsg struct {
	text string
	err  error
}

// ----- model ----- //

type browseModel struct {
	sess  *session.Session
	state *appState
	eff   config.EffectiveConfig
	keys  browseKeys
	help  help.Model

	path   string
	rec    domain.PhotoRecord
	dest   domain.Destination
	suffix string

	// recentIdx>=0 时用最近目录列表中的该项覆盖默认目标目录。
	recentIdx int

	status string
	err    error
	// persistErr 是最近一次写状态库的失败；下一次成功写入时清除。
	persistErr error
	busy       bool
	width      int
}

func newBrowseModel(sess *session.Session, st *appState, eff config.EffectiveConfig) browseModel {
	return browseModel{
		sess:      sess,
		state:     st,
		eff:       eff,
		keys:      defaultBrowseKeys,
		help:      help.New(),
		recentIdx: -1,
	}
}

func (m browseModel) Init() tea.Cmd {
	return m.nextCmd()
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case photoLoadedMsg:
		m.busy = false
		m.path, m.rec, m.dest, m.suffix, m.err = msg.path, msg.rec, msg.dest, msg.suffix, msg.err
		return m, nil

	case placedMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status = describePlacement(msg.kind, msg.pl)
		m.err = nil
		m.persistErr = m.persistLatest(msg.pl)
		if msg.kind == domain.ActionMove && msg.pl.Outcome != domain.OutcomeNoOp {
			return m, m.nextCmd()
		}
		return m, m.loadCmd(m.path)

	case undoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			// 不可撤销的记录已从会话账本移除，状态库中也随之移除。
			if errors.Is(msg.err, domain.ErrUnsupportedUndo) && msg.item.Key != 0 {
				m.persistErr = m.forgetPersisted(msg.item.Key)
			}
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("已撤销：%s", msg.item.From)
		m.persistErr = m.forgetPersisted(msg.item.Key)
		return m, m.loadCmd(msg.item.From)

	case statusMsg:
		m.status, m.err = msg.text, msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m browseModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if m.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		m.status = ""
		return m.startBusy(m.nextCmd())
	case key.Matches(msg, m.keys.Prev):
		m.status = ""
		return m.startBusy(m.loadCmd(m.sess.Previous()))
	case key.Matches(msg, m.keys.Move):
		return m.startBusy(m.placeCmd(domain.ActionMove))
	case key.Matches(msg, m.keys.Copy):
		return m.startBusy(m.placeCmd(domain.ActionCopy))
	case key.Matches(msg, m.keys.Undo):
		return m.startBusy(m.undoCmd())
	case key.Matches(msg, m.keys.Recent):
		m.cycleRecent()
		return m, m.loadCmd(m.path)
	case key.Matches(msg, m.keys.Favorite):
		m.persistErr = m.toggleFavorite()
		return m, nil
	case key.Matches(msg, m.keys.Yank):
		return m, m.yankCmd()
	case key.Matches(msg, m.keys.Preview):
		return m, m.previewCmd()
	}
	return m, nil
}

func (m browseModel) startBusy(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if cmd == nil {
		return m, nil
	}
	m.busy = true
	return m, cmd
}

func (m browseModel) nextCmd() tea.Cmd {
	sess := m.sess
	load := m.loader()
	return func() tea.Msg {
		p, err := sess.Next(context.Background())
		if err != nil {
			return photoLoadedMsg{err: err}
		}
		return load(p)
	}
}

func (m browseModel) loadCmd(path string) tea.Cmd {
	load := m.loader()
	return func() tea.Msg { return load(path) }
}

// loader 返回一个读取 path 元数据与目标位置的函数（在 tea.Cmd 的 goroutine 中执行）。
func (m browseModel) loader() func(string) tea.Msg {
	sess := m.sess
	override := m.recentDir()
	to := m.eff.To
	return func(path string) tea.Msg {
		if path == "" {
			return photoLoadedMsg{}
		}
		rec, err := sess.Info(path)
		if err != nil {
			return photoLoadedMsg{path: path, err: err}
		}
		dest, err := sess.DefaultDestination(path)
		if err != nil {
			return photoLoadedMsg{path: path, rec: rec, err: err}
		}
		if override != "" {
			dest.Dir = filepath.Join(to, filepath.FromSlash(override))
		}
		suffix, err := sess.NoConflictSuffix(dest.Path(0))
		return photoLoadedMsg{path: path, rec: rec, dest: dest, suffix: suffix, err: err}
	}
}

func (m browseModel) placeCmd(kind domain.ActionKind) tea.Cmd {
	if m.path == "" || m.dest.Dir == "" {
		return nil
	}
	sess, src, dst := m.sess, m.path, m.dest.Path(0)
	return func() tea.Msg {
		var (
			pl  domain.Placement
			err error
		)
		if kind == domain.ActionCopy {
			pl, err = sess.Copy(context.Background(), src, dst)
		} else {
			pl, err = sess.Move(context.Background(), src, dst)
		}
		return placedMsg{kind: kind, pl: pl, err: err}
	}
}

func (m browseModel) undoCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		item, err := sess.Undo(0)
		return undoneMsg{item: item, err: err}
	}
}

func (m browseModel) yankCmd() tea.Cmd {
	if m.dest.Dir == "" {
		return nil
	}
	p := m.dest.Path(0)
	return func() tea.Msg {
		if err := clipboard.WriteAll(p); err != nil {
			return statusMsg{err: fmt.Errorf("写入剪贴板失败：%w", err)}
		}
		return statusMsg{text: "已复制目标路径"}
	}
}

func (m browseModel) previewCmd() tea.Cmd {
	if m.path == "" {
		return nil
	}
	sess, path := m.sess, m.path
	return func() tea.Msg {
		b, err := sess.DisplaySrc(path)
		if err != nil {
			return statusMsg{err: err}
		}
		out := filepath.Join(os.TempDir(), "photiso-preview.jpg")
		if err := os.WriteFile(out, b, 0o644); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: fmt.Sprintf("预览图（%s）：%s", humanize.IBytes(uint64(len(b))), out)}
	}
}

// persistLatest 把本次放置对应的账本记录与最近目录写入状态库。
func (m *browseModel) persistLatest(pl domain.Placement) error {
	if m.state == nil {
		return nil
	}
	if h := m.sess.History(); len(h) > 0 && h[0].From == pl.Source && h[0].To == pl.To {
		m.state.history.Add(h[0])
		if err := m.state.saveHistory(); err != nil {
			return fmt.Errorf("保存历史失败：%w", err)
		}
	}
	if pl.Outcome == domain.OutcomeMoved {
		if rel := m.sess.RecentRelativeDir(); rel != "" {
			m.state.app.AddRecent(rel)
			if err := m.state.saveApp(); err != nil {
				return fmt.Errorf("保存最近目录失败：%w", err)
			}
		}
	}
	return nil
}

func (m *browseModel) forgetPersisted(key int64) error {
	if m.state == nil {
		return nil
	}
	m.state.history.Remove(key)
	if err := m.state.saveHistory(); err != nil {
		return fmt.Errorf("保存历史失败：%w", err)
	}
	return nil
}

func (m browseModel) recentDir() string {
	if m.state == nil || m.recentIdx < 0 || m.recentIdx >= len(m.state.app.RecentDirectories) {
		return ""
	}
	return m.state.app.RecentDirectories[m.recentIdx].Dir
}

// cycleRecent 在“默认目录 → 最近目录 1 → … → 默认目录”之间循环。
func (m *browseModel) cycleRecent() {
	if m.state == nil || len(m.state.app.RecentDirectories) == 0 {
		m.recentIdx = -1
		return
	}
	m.recentIdx++
	if m.recentIdx >= len(m.state.app.RecentDirectories) {
		m.recentIdx = -1
	}
}

func (m *browseModel) toggleFavorite() error {
	dir := m.recentDir()
	if dir == "" {
		m.status = "先用 r 选择一个最近目录"
		return nil
	}
	fav := !m.state.app.RecentDirectories[m.recentIdx].Favorite
	m.state.app.Favorite(dir, fav)
	if err := m.state.saveApp(); err != nil {
		return fmt.Errorf("保存最近目录失败：%w", err)
	}
	if fav {
		m.status = "已收藏：" + dir
	} else {
		m.status = "已取消收藏：" + dir
	}
	return nil
}

func describePlacement(kind domain.ActionKind, pl domain.Placement) string {
	switch pl.Outcome {
	case domain.OutcomeNoOp:
		return "已在目标位置，无需操作"
	case domain.OutcomeDuplicateMoved:
		if pl.Discarded {
			if kind == domain.ActionCopy {
				return "重复区已有相同照片，未复制"
			}
			return "重复区已有相同照片，源文件已丢弃"
		}
		return "内容重复，已转入 " + pl.To
	default:
		verb := "已移动到 "
		if kind == domain.ActionCopy {
			verb = "已复制到 "
		}
		return verb + pl.To
	}
}

func (m browseModel) View() string {
	var b strings.Builder

	b.WriteString(browseTitleStyle.Render("photiso browse"))
	b.WriteString(browseDimStyle.Render(fmt.Sprintf("  %s → %s", m.eff.From, m.eff.To)))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(browseLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	if m.path == "" {
		b.WriteString(browseDimStyle.Render("没有更多照片"))
		b.WriteString("\n")
	} else {
		row("文件", m.path)
		if m.rec.Path != "" {
			row("大小", humanize.IBytes(uint64(m.rec.SizeBytes)))
			when := m.rec.BestTime()
			taken := "（文件时间）"
			if m.rec.Taken != nil {
				taken = ""
			}
			if !when.IsZero() {
				row("时间", when.Format("2006-01-02 15:04:05")+" "+humanize.Time(when)+taken)
			}
			if m.rec.Width > 0 {
				row("尺寸", fmt.Sprintf("%d×%d", m.rec.Width, m.rec.Height))
			}
			if cam := strings.TrimSpace(m.rec.Make + " " + m.rec.Model); cam != "" {
				row("相机", cam)
			}
		}
		if m.dest.Dir != "" {
			dst := m.dest.Path(0)
			if m.suffix != "" {
				dst += browseDimStyle.Render("（已存在，将尝试 " + m.suffix + "）")
			}
			row("目标", browseDestStyle.Render(dst))
		}
		if dir := m.recentDir(); dir != "" {
			row("目录", "最近目录："+dir)
		}
	}

	b.WriteString("\n")
	if m.persistErr != nil {
		b.WriteString(browseErrStyle.Render(m.persistErr.Error()))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(browseErrStyle.Render(errorText(m.err)))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(browseOKStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(browseDimStyle.Render(fmt.Sprintf("已浏览 %d · 已记录 %d · 跳过非照片 %d",
		len(m.sess.Entries()), len(m.sess.History()), m.sess.Skipped())))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func errorText(err error) string {
	switch {
	case errors.Is(err, session.ErrNoSuchAction):
		return "没有可撤销的动作"
	case errors.Is(err, domain.ErrUnsupportedUndo):
		return "转入重复区的动作不可撤销"
	default:
		return err.Error()
	}
}
