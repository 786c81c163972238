package chat

import "errors"

// 引擎层通用错误,调用方通过 messageError 或 HTTP 状态码映射。
var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrReactionNotFound = errors.New("reaction not found")
	ErrGroupNotFound    = errors.New("group not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrNoTarget         = errors.New("message must target a receiver or a group")
)
