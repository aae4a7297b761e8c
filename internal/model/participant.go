// Package model はドメインモデルを定義する。
package model

import "strings"

// Participant は日付を予約できる参加者を表す。
// 名簿は起動時に固定され、実行中に変更されない。
type Participant struct {
	ID    string `yaml:"id" json:"id" validate:"required,max=32"`
	Name  string `yaml:"name" json:"name" validate:"required,max=64"`
	Emoji string `yaml:"emoji,omitempty" json:"emoji,omitempty"`
	Color string `yaml:"color,omitempty" json:"color,omitempty" validate:"omitempty,oneof=rose blue emerald amber violet slate"`
}

// ShortName はカレンダーのセルに表示する短い名前（表示名の最初の単語）を返す。
func (p Participant) ShortName() string {
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return p.ID
	}
	return fields[0]
}

// Roster は順序付きの参加者名簿。
type Roster []Participant

// Find はIDに一致する参加者を返す。見つからない場合はfalseを返す。
func (r Roster) Find(id string) (Participant, bool) {
	for _, p := range r {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// IDs は名簿順の参加者IDを返す。
func (r Roster) IDs() []string {
	ids := make([]string, 0, len(r))
	for _, p := range r {
		ids = append(ids, p.ID)
	}
	return ids
}
