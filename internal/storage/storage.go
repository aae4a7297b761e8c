// Package storage はオリジン単位の永続キーバリューストアを提供する。
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// KVStore は文字列キーと文字列値を保持する永続ストア。
// 値は常に全体上書きで書き込まれる。
type KVStore interface {
	// Get はキーの値を返す。存在しない場合は ok=false を返す。
	Get(key string) (value string, ok bool, err error)
	// Set はキーの値を上書きする。
	Set(key, value string) error
}

// FileStore はオリジンごとに1つのJSONファイルへ保存するKVStore実装。
// 同じディレクトリでも異なるオリジンのデータは混ざらない。
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore はdir配下にoriginをスコープとしたFileStoreを生成する。
func NewFileStore(dir, origin string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage dir is empty")
	}
	if origin == "" {
		return nil, errors.New("storage origin is empty")
	}
	return &FileStore{
		path: filepath.Join(dir, originFileName(origin)),
	}, nil
}

// Path は保存先ファイルのパスを返す。
func (s *FileStore) Path() string {
	return s.path
}

// Get はキーの値を返す。
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := entries[key]
	return v, ok, nil
}

// Set はキーの値を上書きしてファイル全体をアトミックに書き直す。
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		// 壊れたファイルは読めないので新しい内容で置き換える
		entries = map[string]string{}
	}
	entries[key] = value

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("failed to write store %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read store %s: %w", s.path, err)
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", s.path, err)
	}
	return entries, nil
}

// WriteFileAtomic は同じディレクトリの一時ファイルに書き込んでからrenameする。
// 親ディレクトリは0700、最終的なファイルは0600で作成される。
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".catsit-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// originFileName はオリジン文字列をファイル名として安全な形に変換する。
// 例: "http://localhost:8080" -> "http_localhost_8080.json"
func originFileName(origin string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(origin) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-'
		if isAlnum {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.Trim(b.String(), "_.")
	if name == "" {
		name = "default"
	}
	return name + ".json"
}

// MemoryStore はテストやサーバーモードで使うメモリ上のKVStore実装。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]string{}}
}

// Get はキーの値を返す。
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

// Set はキーの値を上書きする。
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}
