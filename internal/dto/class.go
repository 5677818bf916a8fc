package dto

// ── 班级模块 DTO ──

// CreateClassRequest 创建班级请求
type CreateClassRequest struct {
	Name      string `json:"name"       binding:"required,min=2,max=200"`
	TeacherID string `json:"teacher_id" binding:"required,uuid"`
	Semester  string `json:"semester"   binding:"required,max=50"`
}

// EnrollStudentsRequest 按学号批量加入班级名册
type EnrollStudentsRequest struct {
	StudentCodes []string `json:"student_codes" binding:"required,min=1,dive,required"`
}

// RemoveClassStudentsRequest 按学号批量移出班级名册
type RemoveClassStudentsRequest struct {
	StudentCodes []string `json:"student_codes" binding:"required,min=1,dive,required"`
}

// ClassResponse 班级信息响应
type ClassResponse struct {
	ClassID    string   `json:"class_id"`
	Name       string   `json:"name"`
	TeacherID  string   `json:"teacher_id"`
	Semester   string   `json:"semester"`
	Status     string   `json:"status"`
	StudentIDs []string `json:"student_ids"`
	CreatedAt  string   `json:"created_at"`
}
