// Package mru 维护调用方持有的应用状态：上次使用的根目录与最近/收藏的目标目录。
// 引擎本身不读写这些状态；CLI 负责经由 store 持久化。
package mru

import (
	"sort"
	"strings"
	"time"
)

// MaxRecentDirectories 是最近目录列表的容量。
const MaxRecentDirectories = 20

// RecentDirectory 是一个最近使用过的目标目录（相对 to）。
type RecentDirectory struct {
	Dir       string    `json:"dir"`
	Favorite  bool      `json:"favorite,omitempty"`
	FirstUsed time.Time `json:"first_used"`
	LastUsed  time.Time `json:"last_used"`
}

// AppState 是持久化的应用状态（JSON blob）。
type AppState struct {
	FromDirectory     string            `json:"from_directory"`
	RootToDirectory   string            `json:"root_to_directory"`
	RecentDirectories []RecentDirectory `json:"recent_directories"`
}

var now = time.Now

// SetRoots 记录最近一次使用的 from/to（空值不覆盖）。
func (s *AppState) SetRoots(from, to string) {
	if strings.TrimSpace(from) != "" {
		s.FromDirectory = from
	}
	if strings.TrimSpace(to) != "" {
		s.RootToDirectory = to
	}
}

// AddRecent 把 dir 置为最近使用：已存在则刷新 LastUsed，否则新增。
// 排序：收藏在前，其余按 LastUsed 倒序；超过容量的尾部被丢弃。
func (s *AppState) AddRecent(dir string) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return
	}
	t := now()
	if i := s.index(dir); i >= 0 {
		s.RecentDirectories[i].LastUsed = t
	} else {
		s.RecentDirectories = append(s.RecentDirectories, RecentDirectory{Dir: dir, FirstUsed: t, LastUsed: t})
	}

	sort.SliceStable(s.RecentDirectories, func(i, j int) bool {
		a, b := s.RecentDirectories[i], s.RecentDirectories[j]
		if a.Favorite != b.Favorite {
			return a.Favorite
		}
		return a.LastUsed.After(b.LastUsed)
	})
	if len(s.RecentDirectories) > MaxRecentDirectories {
		s.RecentDirectories = s.RecentDirectories[:MaxRecentDirectories]
	}
}

// Favorite 设置 dir 的收藏标记；dir 不在列表中返回 false。
// 不重新排序：顺序在下一次 AddRecent 时调整。
func (s *AppState) Favorite(dir string, favorite bool) bool {
	i := s.index(dir)
	if i < 0 {
		return false
	}
	s.RecentDirectories[i].Favorite = favorite
	return true
}

// Remove 从列表中删除 dir；不存在返回 false。
func (s *AppState) Remove(dir string) bool {
	i := s.index(dir)
	if i < 0 {
		return false
	}
	s.RecentDirectories = append(s.RecentDirectories[:i], s.RecentDirectories[i+1:]...)
	return true
}

// Dirs 返回按当前顺序排列的目录名。
func (s *AppState) Dirs() []string {
	out := make([]string, 0, len(s.RecentDirectories))
	for _, d := range s.RecentDirectories {
		out = append(out, d.Dir)
	}
	return out
}

func (s *AppState) index(dir string) int {
	for i, d := range s.RecentDirectories {
		if d.Dir == dir {
			return i
		}
	}
	return -1
}
