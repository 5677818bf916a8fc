package clock

import "time"

// Clock 时间源抽象
// 业务代码通过注入 Clock 取当前时间，测试中可替换为固定时间源
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System 返回基于 time.Now 的真实时钟
func System() Clock { return systemClock{} }
