package repository

import "time"

// 現在時刻（テストで差し替える）
type Clock interface {
	Now() time.Time
}
