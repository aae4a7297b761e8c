package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/catsit/internal/model"
	"github.com/hitoshi/catsit/internal/storage"
)

// LoadCalendar はYAMLファイルから名簿と休暇期間を読み込む。
// ファイルが存在しない場合はデフォルトのカレンダーで作成し、createdにtrueを返す。
// 読み込んだ内容はmodel.Calendar.Validateで検証する。
func LoadCalendar(path string) (cal model.Calendar, created bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cal = model.DefaultCalendar()
		if err := SaveCalendar(path, cal); err != nil {
			return model.Calendar{}, false, err
		}
		return cal, true, nil
	}
	if err != nil {
		return model.Calendar{}, false, fmt.Errorf("failed to read calendar file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cal); err != nil {
		return model.Calendar{}, false, fmt.Errorf("failed to parse calendar file %s: %w", path, err)
	}
	if err := cal.Validate(); err != nil {
		return model.Calendar{}, false, fmt.Errorf("invalid calendar file %s: %w", path, err)
	}
	return cal, false, nil
}

// SaveCalendar はカレンダーを検証してYAMLファイルに書き込む。
func SaveCalendar(path string, cal model.Calendar) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write calendar file: %w", err)
	}
	return nil
}
