package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// 约定的 key。
const (
	KeyAppState = "app_state"
	KeyHistory  = "history"
)

var ErrReadOnly = errors.New("store: read-only")

// Store 是调用方持有的 JSON key/value 存储（SQLite 单表）。
//
// 约束：
// - value 一律是 JSON blob；结构由调用方决定
// - ReadOnly=true 时拒绝写入（dry-run 下也能读出历史/最近目录）
type Store struct {
	db       *sql.DB
	path     string
	ReadOnly bool
}

// Open 打开（必要时创建）path 处的数据库。
func Open(path string, readOnly bool) (*Store, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "." || path == "" {
		return nil, fmt.Errorf("state_db 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建 state_db 目录失败：%w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开 state_db 失败：%w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化 state_db 失败：%w", err)
	}
	return &Store{db: db, path: path, ReadOnly: readOnly}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

// Get 把 key 对应的 JSON 解码进 v；key 不存在时返回 false。
func (s *Store) Get(key string, v any) (bool, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return true, fmt.Errorf("解析 %q 失败：%w", key, err)
	}
	return true, nil
}

// Put 以 JSON 写入（覆盖）key。
func (s *Store) Put(key string, v any) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, b, time.Now().UnixMilli())
	return err
}

// Delete 删除 key（不存在不是错误）。
func (s *Store) Delete(key string) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}
