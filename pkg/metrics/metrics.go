package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── 签到核心指标 ──

var (
	// VerifyTotal 扫码验证结果计数，label result 为 success 或具体失败原因
	VerifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "verify_total",
		Help:      "扫码验证结果计数",
	}, []string{"result"})

	// RotationsTotal 已签发的二维码数量（含轮换与手动生成）
	RotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "qr_rotations_total",
		Help:      "已签发的二维码数量",
	})

	// AbsencesFilledTotal 关闭小节时补记的缺勤数
	AbsencesFilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "absences_filled_total",
		Help:      "关闭小节时补记的缺勤记录数",
	})
)
