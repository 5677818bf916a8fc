package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/config"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/dto"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/repository"
)

// 测试固定地点（开罗）
const (
	testLongitude = 31.2357
	testLatitude  = 30.0444
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: "http://localhost:8080"},
		QR: config.QRConfig{
			RotationInterval:    time.Minute,
			DefaultRadiusM:      50,
			DefaultLocationName: "主楼",
			DuplicateWindow:     10 * time.Minute,
		},
	}
}

type attendanceFixture struct {
	svc       AttendanceService
	repo      *repository.Repository
	attRepo   *mockAttendanceRepo
	codeRepo  *mockCodeRepo
	clk       *fakeClock
	class     *model.Class
	section   *model.Section
	code      *model.Code
	studentID string
}

// setupAttendanceTest 预置：班级 c 含学生 stu-1/stu-2，
// 小节 sec 名册只有 stu-1，小节有一个活跃码 tok-1
func setupAttendanceTest(t *testing.T) *attendanceFixture {
	t.Helper()

	userRepo := newMockUserRepo()
	classRepo := newMockClassRepo()
	sectionRepo := newMockSectionRepo()
	codeRepo := newMockCodeRepo()
	attRepo := newMockAttendanceRepo()
	repo := &repository.Repository{
		User:       userRepo,
		Class:      classRepo,
		Section:    sectionRepo,
		Code:       codeRepo,
		Attendance: attRepo,
	}

	clk := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	sc1, sc2 := "1001", "1002"
	userRepo.users["stu-1"] = &model.User{UserID: "stu-1", Name: "张三", Email: "s1@fci.edu", StudentCode: &sc1, Role: model.RoleStudent}
	userRepo.users["stu-2"] = &model.User{UserID: "stu-2", Name: "李四", Email: "s2@fci.edu", StudentCode: &sc2, Role: model.RoleStudent}

	class := &model.Class{ClassID: "class-1", Name: "数据结构", TeacherID: "teacher-1",
		Semester: "2025-2026-2", Status: model.ClassStatusActive,
		StudentIDs: model.UUIDArray{"stu-1", "stu-2"}}
	classRepo.classes[class.ClassID] = class

	section := &model.Section{SectionID: "section-1", ClassID: "class-1", Name: "第一小节",
		SectionNumber: 1, StudentIDs: model.UUIDArray{"stu-1"}}
	sectionRepo.sections[section.SectionID] = section

	code := &model.Code{
		CodeID: "code-1", Code: "tok-1",
		ExpiresAt:    clk.Now().Add(time.Minute),
		LocLongitude: testLongitude, LocLatitude: testLatitude,
		LocName: "主楼", LocRadiusM: 50,
		ClassID: "class-1", SectionID: "section-1", DayNumber: 1,
		CreatedBy: "teacher-1", IsActive: true, CreatedAt: clk.Now(),
	}
	codeRepo.codes[code.CodeID] = code

	svc := NewAttendanceService(testConfig(), repo, nil, clk, zap.NewNop())
	return &attendanceFixture{
		svc: svc, repo: repo, attRepo: attRepo, codeRepo: codeRepo, clk: clk,
		class: class, section: section, code: code, studentID: "stu-1",
	}
}

func verifyReq(fingerprint string) *dto.VerifyAttendanceRequest {
	return &dto.VerifyAttendanceRequest{
		Location:    &dto.LocationPoint{Longitude: f64(testLongitude), Latitude: f64(testLatitude)},
		Fingerprint: fingerprint,
	}
}

// ── Verify 测试 ──

func TestAttendanceService_Verify_Success(t *testing.T) {
	f := setupAttendanceTest(t)

	att, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq("fp-a"), "Mozilla/5.0", "10.0.0.1")
	if err != nil {
		t.Fatalf("Verify 应成功: %v", err)
	}
	if att.Status != model.AttendanceStatusPresent {
		t.Errorf("期望状态 present，实际=%s", att.Status)
	}
	if att.SectionID != "section-1" || att.DayNumber != 1 {
		t.Errorf("记录归属错误: section=%s day=%d", att.SectionID, att.DayNumber)
	}
	if att.CodeID == nil || *att.CodeID != "code-1" {
		t.Error("记录应关联签发的二维码")
	}
}

func TestAttendanceService_Verify_UnknownToken(t *testing.T) {
	f := setupAttendanceTest(t)

	_, err := f.svc.Verify(context.Background(), "tok-nope", f.studentID, verifyReq(""), "", "")
	if !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Errorf("期望 ErrInvalidOrExpiredCode，实际: %v", err)
	}
}

func TestAttendanceService_Verify_InactiveCode(t *testing.T) {
	f := setupAttendanceTest(t)
	f.code.IsActive = false

	_, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq(""), "", "")
	if !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Errorf("期望 ErrInvalidOrExpiredCode，实际: %v", err)
	}
}

func TestAttendanceService_Verify_ExpiredCode(t *testing.T) {
	f := setupAttendanceTest(t)
	f.clk.Advance(2 * time.Minute)

	_, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq(""), "", "")
	if !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Errorf("过期码期望 ErrInvalidOrExpiredCode，实际: %v", err)
	}
}

func TestAttendanceService_Verify_OutOfRange(t *testing.T) {
	f := setupAttendanceTest(t)

	// 纬度偏移约 111 米，超出 50 米围栏
	req := &dto.VerifyAttendanceRequest{
		Location: &dto.LocationPoint{Longitude: f64(testLongitude), Latitude: f64(testLatitude + 0.001)},
	}
	_, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, req, "", "")
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("期望 ErrOutOfRange，实际: %v", err)
	}
	if got, _ := f.attRepo.Exists(context.Background(), f.studentID, "section-1", 1); got {
		t.Error("围栏外不应写入任何记录")
	}
}

func TestAttendanceService_Verify_NotEnrolled(t *testing.T) {
	f := setupAttendanceTest(t)

	_, err := f.svc.Verify(context.Background(), "tok-1", "stu-9", verifyReq(""), "", "")
	if !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("期望 ErrNotEnrolled，实际: %v", err)
	}
}

func TestAttendanceService_Verify_WrongSection(t *testing.T) {
	f := setupAttendanceTest(t)

	// stu-2 在班级名册但不在小节名册
	_, err := f.svc.Verify(context.Background(), "tok-1", "stu-2", verifyReq(""), "", "")
	if !errors.Is(err, ErrWrongSection) {
		t.Errorf("期望 ErrWrongSection，实际: %v", err)
	}
}

func TestAttendanceService_Verify_DuplicateSameFingerprint(t *testing.T) {
	f := setupAttendanceTest(t)

	if _, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq("fp-a"), "", ""); err != nil {
		t.Fatalf("首次签到应成功: %v", err)
	}

	f.clk.Advance(time.Minute)
	f.code.ExpiresAt = f.clk.Now().Add(time.Minute) // 模拟轮换后的有效码

	_, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq("fp-a"), "", "")
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Errorf("窗口内同指纹重复签到期望 ErrDuplicateSubmission，实际: %v", err)
	}
}

func TestAttendanceService_Verify_DuplicateAgainstFingerprintlessRecord(t *testing.T) {
	f := setupAttendanceTest(t)

	// 首次签到未带指纹；第二次无论带什么指纹都应被拦截
	if _, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq(""), "", ""); err != nil {
		t.Fatalf("首次签到应成功: %v", err)
	}

	_, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq("fp-new"), "", "")
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Errorf("无指纹记录应拦截任意后续签到，实际: %v", err)
	}
}

func TestAttendanceService_Verify_DifferentFingerprintAllowed(t *testing.T) {
	f := setupAttendanceTest(t)

	if _, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq("fp-a"), "", ""); err != nil {
		t.Fatalf("首次签到应成功: %v", err)
	}

	// 不同设备指纹不落入窗口判定；由部分唯一索引各自约束
	if _, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq("fp-b"), "", ""); err != nil {
		t.Errorf("不同指纹不应被窗口判定拦截: %v", err)
	}
}

func TestAttendanceService_Verify_BackstopIndexAfterWindow(t *testing.T) {
	f := setupAttendanceTest(t)

	if _, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq("fp-a"), "", ""); err != nil {
		t.Fatalf("首次签到应成功: %v", err)
	}

	// 窗口已过但同 (student, section, day, fingerprint) 仍被唯一索引兜底
	f.clk.Advance(15 * time.Minute)
	f.code.ExpiresAt = f.clk.Now().Add(time.Minute)

	_, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq("fp-a"), "", "")
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Errorf("唯一索引兜底应返回 ErrDuplicateSubmission，实际: %v", err)
	}
}

func TestAttendanceService_Verify_DifferentSectionSameDayIndependent(t *testing.T) {
	f := setupAttendanceTest(t)

	// 第二个小节也收录 stu-1，同一课次各有活跃码
	sectionRepo := f.repo.Section.(*mockSectionRepo)
	sectionRepo.sections["section-2"] = &model.Section{SectionID: "section-2", ClassID: "class-1",
		Name: "第二小节", SectionNumber: 2, StudentIDs: model.UUIDArray{"stu-1"}}
	f.codeRepo.codes["code-2"] = &model.Code{
		CodeID: "code-2", Code: "tok-2",
		ExpiresAt:    f.clk.Now().Add(time.Minute),
		LocLongitude: testLongitude, LocLatitude: testLatitude,
		LocName: "主楼", LocRadiusM: 50,
		ClassID: "class-1", SectionID: "section-2", DayNumber: 1,
		CreatedBy: "teacher-1", IsActive: true, CreatedAt: f.clk.Now(),
	}

	if _, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq("fp-a"), "", ""); err != nil {
		t.Fatalf("小节 1 签到应成功: %v", err)
	}
	// 同学生同课次，另一小节的码不落入重复判定
	att, err := f.svc.Verify(context.Background(), "tok-2", f.studentID, verifyReq("fp-a"), "", "")
	if err != nil {
		t.Fatalf("小节 2 签到应独立成功: %v", err)
	}
	if att.SectionID != "section-2" {
		t.Errorf("记录应归属 section-2，实际=%s", att.SectionID)
	}
	if len(f.attRepo.records) != 2 {
		t.Errorf("期望 2 条独立记录，实际=%d", len(f.attRepo.records))
	}
}

// ── RecordManual 测试 ──

func TestAttendanceService_RecordManual_CreatesAndOverwrites(t *testing.T) {
	f := setupAttendanceTest(t)

	req := &dto.ManualAttendanceRequest{
		StudentID: "stu-1", ClassID: "class-1", SectionID: "section-1",
		DayNumber: 2, Status: model.AttendanceStatusLate,
	}
	att, err := f.svc.RecordManual(context.Background(), req)
	if err != nil {
		t.Fatalf("手动录入应成功: %v", err)
	}
	if att.Status != model.AttendanceStatusLate {
		t.Errorf("期望状态 late，实际=%s", att.Status)
	}

	// 再次录入同键应覆盖而非新增
	req.Status = model.AttendanceStatusPresent
	att2, err := f.svc.RecordManual(context.Background(), req)
	if err != nil {
		t.Fatalf("覆盖录入应成功: %v", err)
	}
	if att2.AttendanceID != att.AttendanceID {
		t.Error("同键手动录入应覆盖已有记录")
	}
	if len(f.attRepo.records) != 1 {
		t.Errorf("期望 1 条记录，实际=%d", len(f.attRepo.records))
	}
}

func TestAttendanceService_RecordManual_WrongSection(t *testing.T) {
	f := setupAttendanceTest(t)

	req := &dto.ManualAttendanceRequest{
		StudentID: "stu-2", ClassID: "class-1", SectionID: "section-1",
		DayNumber: 1, Status: model.AttendanceStatusPresent,
	}
	_, err := f.svc.RecordManual(context.Background(), req)
	if !errors.Is(err, ErrWrongSection) {
		t.Errorf("期望 ErrWrongSection，实际: %v", err)
	}
}

// ── ListForStudent 测试 ──

func TestAttendanceService_ListForStudent(t *testing.T) {
	f := setupAttendanceTest(t)

	if _, err := f.svc.Verify(context.Background(), "tok-1", f.studentID, verifyReq("fp-a"), "", ""); err != nil {
		t.Fatalf("签到应成功: %v", err)
	}

	atts, err := f.svc.ListForStudent(context.Background(), "class-1", f.studentID)
	if err != nil {
		t.Fatalf("查询应成功: %v", err)
	}
	if len(atts) != 1 {
		t.Fatalf("期望 1 条记录，实际=%d", len(atts))
	}
	if atts[0].StudentID != f.studentID {
		t.Errorf("记录归属错误: %s", atts[0].StudentID)
	}
}

func TestAttendanceService_ListForStudent_NotEnrolled(t *testing.T) {
	f := setupAttendanceTest(t)

	_, err := f.svc.ListForStudent(context.Background(), "class-1", "stu-9")
	if !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("期望 ErrNotEnrolled，实际: %v", err)
	}
}
