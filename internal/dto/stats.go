package dto

// ── 统计模块 DTO ──

// DayStatus 单个课次的出勤标记："P" 出勤、"L" 迟到、"" 缺勤/无记录
type DayStatus struct {
	DayNumber int    `json:"day_number"`
	Status    string `json:"status"`
}

// SectionAttendance 学生在某小节的逐课次出勤网格
type SectionAttendance struct {
	SectionNumber int         `json:"section_number"`
	Days          []DayStatus `json:"days"`
}

// StudentStat 班级内单个学生的出勤汇总
type StudentStat struct {
	StudentID            string              `json:"student_id"`
	Name                 string              `json:"name"`
	Email                string              `json:"email"`
	StudentCode          string              `json:"student_code"`
	TotalAttended        int                 `json:"total_attended"`
	TotalAbsent          int                 `json:"total_absent"`
	TotalLate            int                 `json:"total_late"`
	TotalSections        int                 `json:"total_sections"` // 出勤+迟到合计
	AttendancePercentage string              `json:"attendance_percentage"`
	SectionAttendance    []SectionAttendance `json:"section_attendance"`
}
