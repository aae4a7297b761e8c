package model

import "sort"

// ReservationMap は日付から参加者IDへの対応。
// キーが存在する日は予約済み、存在しない日は空きを表す。
type ReservationMap map[DateKey]string

// Clone はマップの独立したコピーを返す。nilの場合も空のマップを返す。
func (m ReservationMap) Clone() ReservationMap {
	out := make(ReservationMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal は2つのマップが同じ内容かどうかを返す。nilと空のマップは等しい。
func (m ReservationMap) Equal(other ReservationMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// SortedKeys は日付を昇順で返す。
func (m ReservationMap) SortedKeys() []DateKey {
	keys := make([]DateKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
