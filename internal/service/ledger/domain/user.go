// internal/service/ledger/domain/user.go
package domain

import "time"

// User 是一个在机器人中出现过的买家或管理员。
// 首次交互时写入，之后的交互只刷新用户名和显示名，从不删除。
type User struct {
	TelegramID int64
	Username   string
	Name       string
	CreatedAt  time.Time
}
