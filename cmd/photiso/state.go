package main

import (
	"fmt"

	"github.com/John-Robertt/photiso/internal/app/mru"
	"github.com/John-Robertt/photiso/internal/app/session"
	"github.com/John-Robertt/photiso/internal/config"
	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/store"
)

// maxPersistedHistory 是持久化动作账本的容量。
const maxPersistedHistory = 500

// appState 是 CLI 持有的持久化状态：最近目录与跨会话的动作账本。
type appState struct {
	st      *store.Store
	app     mru.AppState
	history *session.Ledger
}

func openState(eff config.EffectiveConfig, readOnly bool) (*appState, error) {
	if eff.StateDB == "" {
		return nil, fmt.Errorf("未配置 state_db")
	}
	st, err := store.Open(eff.StateDB, readOnly)
	if err != nil {
		return nil, err
	}
	s := &appState{st: st}
	if _, err := st.Get(store.KeyAppState, &s.app); err != nil {
		_ = st.Close()
		return nil, err
	}
	var items []domain.ActionHistoryItem
	if _, err := st.Get(store.KeyHistory, &items); err != nil {
		_ = st.Close()
		return nil, err
	}
	s.history = session.NewLedger(items)
	return s, nil
}

func (s *appState) Close() error { return s.st.Close() }

func (s *appState) saveApp() error {
	return s.st.Put(store.KeyAppState, s.app)
}

func (s *appState) saveHistory() error {
	s.history.Truncate(maxPersistedHistory)
	return s.st.Put(store.KeyHistory, s.history.Items())
}

// loadEffectiveWithRoots 在配置与参数都没给出 from/to 时，退回上次使用的根目录。
func loadEffectiveWithRoots(cli config.CLIArgs) (config.EffectiveConfig, error) {
	eff, err := loadEffective(cli)
	if err != nil {
		return eff, err
	}
	if eff.RequireRoots() == nil {
		return eff, nil
	}

	if s, err := openState(eff, true); err == nil {
		if eff.From == "" {
			cli.From = s.app.FromDirectory
		}
		if eff.To == "" {
			cli.To = s.app.RootToDirectory
		}
		_ = s.Close()
		if eff, err = loadEffective(cli); err != nil {
			return eff, err
		}
	}
	return eff, eff.RequireRoots()
}

// rememberRoots 记录最近一次使用的 from/to；状态库不可用只影响下次的默认值，不影响本次结果。
func rememberRoots(eff config.EffectiveConfig) {
	s, err := openState(eff, false)
	if err != nil {
		return
	}
	defer s.Close()
	s.app.SetRoots(eff.From, eff.To)
	_ = s.saveApp()
}
