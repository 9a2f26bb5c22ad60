package vclock

import "errors"

// 时钟子系统的错误分类。上层通过 errors.Is 判断类别并决定响应方式：
// 输入类错误可立即重试，存储类错误提示后端异常。
var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidSpeed     = errors.New("invalid speed")
	ErrInvalidAction    = errors.New("invalid time action")
	ErrStateCorruption  = errors.New("session clock state corrupted")
	ErrPersistence      = errors.New("persistence failed")
	// ErrConcurrentUpdate 表示保存时发现记录已被其他写入方修改（CAS 失败），本次写入未生效
	ErrConcurrentUpdate = errors.New("session clock modified concurrently")
)

// IsInputError 判断是否为调用方输入错误（状态未改变，可修正后重试）
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidTimestamp) ||
		errors.Is(err, ErrInvalidSpeed) ||
		errors.Is(err, ErrInvalidAction)
}
