package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/dto"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/repository"
)

func setupClassTest(t *testing.T) (ClassService, *mockClassRepo, *mockUserRepo) {
	t.Helper()

	userRepo := newMockUserRepo()
	classRepo := newMockClassRepo()
	repo := &repository.Repository{
		User:       userRepo,
		Class:      classRepo,
		Section:    newMockSectionRepo(),
		Code:       newMockCodeRepo(),
		Attendance: newMockAttendanceRepo(),
	}

	userRepo.users["teacher-1"] = &model.User{UserID: "teacher-1", Name: "王老师",
		Email: "t1@fci.edu", Role: model.RoleInstructor}
	sc1, sc2 := "1001", "1002"
	userRepo.users["stu-1"] = &model.User{UserID: "stu-1", Name: "张三",
		Email: "s1@fci.edu", StudentCode: &sc1, Role: model.RoleStudent}
	userRepo.users["stu-2"] = &model.User{UserID: "stu-2", Name: "李四",
		Email: "s2@fci.edu", StudentCode: &sc2, Role: model.RoleStudent}

	svc := NewClassService(repo, zap.NewNop())
	return svc, classRepo, userRepo
}

// ── Create 测试 ──

func TestClassService_Create_Success(t *testing.T) {
	svc, _, _ := setupClassTest(t)

	req := &dto.CreateClassRequest{Name: "数据结构", TeacherID: "teacher-1", Semester: "2025-2026-2"}
	class, err := svc.Create(context.Background(), req, "teacher-1", model.RoleInstructor)
	if err != nil {
		t.Fatalf("创建应成功: %v", err)
	}
	if class.Status != model.ClassStatusActive {
		t.Errorf("新班级应为 active，实际=%s", class.Status)
	}
	if len(class.StudentIDs) != 0 {
		t.Error("新班级名册应为空")
	}
}

func TestClassService_Create_NotOwnClass(t *testing.T) {
	svc, _, _ := setupClassTest(t)

	req := &dto.CreateClassRequest{Name: "数据结构", TeacherID: "teacher-1", Semester: "2025-2026-2"}
	_, err := svc.Create(context.Background(), req, "teacher-2", model.RoleInstructor)
	if !errors.Is(err, ErrNotClassOwner) {
		t.Errorf("教师为他人建班期望 ErrNotClassOwner，实际: %v", err)
	}
}

func TestClassService_Create_TeacherInvalid(t *testing.T) {
	svc, _, _ := setupClassTest(t)

	// stu-1 不是教师角色
	req := &dto.CreateClassRequest{Name: "数据结构", TeacherID: "stu-1", Semester: "2025-2026-2"}
	_, err := svc.Create(context.Background(), req, "admin-1", model.RoleAdmin)
	if !errors.Is(err, ErrTeacherInvalid) {
		t.Errorf("期望 ErrTeacherInvalid，实际: %v", err)
	}
}

// ── EnrollStudents 测试 ──

func TestClassService_EnrollStudents(t *testing.T) {
	svc, classRepo, _ := setupClassTest(t)
	classRepo.classes["class-1"] = &model.Class{ClassID: "class-1", Name: "数据结构",
		TeacherID: "teacher-1", Semester: "2025-2026-2", Status: model.ClassStatusActive}

	req := &dto.EnrollStudentsRequest{StudentCodes: []string{"1001", "1002"}}
	class, err := svc.EnrollStudents(context.Background(), "class-1", req, "teacher-1", model.RoleInstructor)
	if err != nil {
		t.Fatalf("加入名册应成功: %v", err)
	}
	if len(class.StudentIDs) != 2 {
		t.Fatalf("期望名册 2 人，实际=%d", len(class.StudentIDs))
	}

	// 重复加入应幂等
	class, err = svc.EnrollStudents(context.Background(), "class-1", req, "teacher-1", model.RoleInstructor)
	if err != nil {
		t.Fatalf("重复加入应成功: %v", err)
	}
	if len(class.StudentIDs) != 2 {
		t.Errorf("重复加入不应扩大名册，实际=%d", len(class.StudentIDs))
	}
}

func TestClassService_EnrollStudents_UnknownCode(t *testing.T) {
	svc, classRepo, _ := setupClassTest(t)
	classRepo.classes["class-1"] = &model.Class{ClassID: "class-1", Name: "数据结构",
		TeacherID: "teacher-1", Semester: "2025-2026-2", Status: model.ClassStatusActive}

	req := &dto.EnrollStudentsRequest{StudentCodes: []string{"1001", "9999"}}
	_, err := svc.EnrollStudents(context.Background(), "class-1", req, "teacher-1", model.RoleInstructor)
	if !errors.Is(err, ErrStudentsNotFound) {
		t.Errorf("期望 ErrStudentsNotFound，实际: %v", err)
	}
}

func TestClassService_EnrollStudents_NotOwner(t *testing.T) {
	svc, classRepo, _ := setupClassTest(t)
	classRepo.classes["class-1"] = &model.Class{ClassID: "class-1", Name: "数据结构",
		TeacherID: "teacher-1", Semester: "2025-2026-2", Status: model.ClassStatusActive}

	req := &dto.EnrollStudentsRequest{StudentCodes: []string{"1001"}}
	_, err := svc.EnrollStudents(context.Background(), "class-1", req, "teacher-2", model.RoleInstructor)
	if !errors.Is(err, ErrNotClassOwner) {
		t.Errorf("期望 ErrNotClassOwner，实际: %v", err)
	}
}

// ── RemoveStudents 测试 ──

func TestClassService_RemoveStudents(t *testing.T) {
	svc, classRepo, _ := setupClassTest(t)
	classRepo.classes["class-1"] = &model.Class{ClassID: "class-1", Name: "数据结构",
		TeacherID: "teacher-1", Semester: "2025-2026-2", Status: model.ClassStatusActive,
		StudentIDs: model.UUIDArray{"stu-1", "stu-2"}}

	req := &dto.RemoveClassStudentsRequest{StudentCodes: []string{"1001"}}
	class, err := svc.RemoveStudents(context.Background(), "class-1", req, "teacher-1", model.RoleInstructor)
	if err != nil {
		t.Fatalf("移出名册应成功: %v", err)
	}
	if len(class.StudentIDs) != 1 || class.StudentIDs[0] != "stu-2" {
		t.Errorf("stu-1 应被移出，名册=%v", class.StudentIDs)
	}

	// 重复移出应幂等
	class, err = svc.RemoveStudents(context.Background(), "class-1", req, "teacher-1", model.RoleInstructor)
	if err != nil {
		t.Fatalf("重复移出应成功: %v", err)
	}
	if len(class.StudentIDs) != 1 {
		t.Errorf("重复移出不应改变名册，实际=%v", class.StudentIDs)
	}
}

func TestClassService_RemoveStudents_UnknownCode(t *testing.T) {
	svc, classRepo, _ := setupClassTest(t)
	classRepo.classes["class-1"] = &model.Class{ClassID: "class-1", Name: "数据结构",
		TeacherID: "teacher-1", Semester: "2025-2026-2", Status: model.ClassStatusActive,
		StudentIDs: model.UUIDArray{"stu-1"}}

	req := &dto.RemoveClassStudentsRequest{StudentCodes: []string{"9999"}}
	_, err := svc.RemoveStudents(context.Background(), "class-1", req, "teacher-1", model.RoleInstructor)
	if !errors.Is(err, ErrStudentsNotFound) {
		t.Errorf("期望 ErrStudentsNotFound，实际: %v", err)
	}
}

func TestClassService_RemoveStudents_NotOwner(t *testing.T) {
	svc, classRepo, _ := setupClassTest(t)
	classRepo.classes["class-1"] = &model.Class{ClassID: "class-1", Name: "数据结构",
		TeacherID: "teacher-1", Semester: "2025-2026-2", Status: model.ClassStatusActive,
		StudentIDs: model.UUIDArray{"stu-1"}}

	req := &dto.RemoveClassStudentsRequest{StudentCodes: []string{"1001"}}
	_, err := svc.RemoveStudents(context.Background(), "class-1", req, "teacher-2", model.RoleInstructor)
	if !errors.Is(err, ErrNotClassOwner) {
		t.Errorf("期望 ErrNotClassOwner，实际: %v", err)
	}
}

// ── List 测试 ──

func TestClassService_List_ByRole(t *testing.T) {
	svc, classRepo, _ := setupClassTest(t)
	classRepo.classes["class-1"] = &model.Class{ClassID: "class-1", Name: "数据结构",
		TeacherID: "teacher-1", StudentIDs: model.UUIDArray{"stu-1"}}
	classRepo.classes["class-2"] = &model.Class{ClassID: "class-2", Name: "操作系统",
		TeacherID: "teacher-2"}

	mine, err := svc.List(context.Background(), "teacher-1", model.RoleInstructor)
	if err != nil || len(mine) != 1 || mine[0].ClassID != "class-1" {
		t.Errorf("教师应只看到自己授课班级: %v %v", mine, err)
	}

	enrolled, err := svc.List(context.Background(), "stu-1", model.RoleStudent)
	if err != nil || len(enrolled) != 1 || enrolled[0].ClassID != "class-1" {
		t.Errorf("学生应只看到已加入班级: %v %v", enrolled, err)
	}

	all, err := svc.List(context.Background(), "admin-1", model.RoleAdmin)
	if err != nil || len(all) != 2 {
		t.Errorf("管理员应看到全部班级: %v %v", all, err)
	}
}

// ── Delete 测试 ──

func TestClassService_Delete(t *testing.T) {
	svc, classRepo, _ := setupClassTest(t)
	classRepo.classes["class-1"] = &model.Class{ClassID: "class-1", Name: "数据结构", TeacherID: "teacher-1"}

	if err := svc.Delete(context.Background(), "class-1"); err != nil {
		t.Fatalf("删除应成功: %v", err)
	}
	if err := svc.Delete(context.Background(), "class-1"); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("重复删除期望 ErrClassNotFound，实际: %v", err)
	}
}
