package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
)

func f64(v float64) *float64 { return &v }

// ── 测试时钟 ──

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = "user-" + user.Email
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	var result []model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (m *mockUserRepo) ListStudentsByCodes(_ context.Context, codes []string) ([]model.User, error) {
	seen := make(map[string]bool, len(codes))
	var result []model.User
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true
		for _, u := range m.users {
			if u.Role == model.RoleStudent && u.StudentCode != nil && *u.StudentCode == code {
				result = append(result, *u)
			}
		}
	}
	return result, nil
}

// ── Mock ClassRepository ──

type mockClassRepo struct {
	classes map[string]*model.Class
	seq     int
}

func newMockClassRepo() *mockClassRepo {
	return &mockClassRepo{classes: make(map[string]*model.Class)}
}

func (m *mockClassRepo) Create(_ context.Context, class *model.Class) error {
	if class.ClassID == "" {
		m.seq++
		class.ClassID = fmt.Sprintf("class-%d", m.seq)
	}
	m.classes[class.ClassID] = class
	return nil
}

func (m *mockClassRepo) GetByID(_ context.Context, id string) (*model.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassRepo) ListByTeacher(_ context.Context, teacherID string) ([]model.Class, error) {
	var result []model.Class
	for _, c := range m.classes {
		if c.TeacherID == teacherID {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockClassRepo) ListAll(_ context.Context) ([]model.Class, error) {
	var result []model.Class
	for _, c := range m.classes {
		result = append(result, *c)
	}
	return result, nil
}

func (m *mockClassRepo) ListByStudent(_ context.Context, studentID string) ([]model.Class, error) {
	var result []model.Class
	for _, c := range m.classes {
		if c.StudentIDs.Contains(studentID) {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockClassRepo) Update(_ context.Context, class *model.Class) error {
	m.classes[class.ClassID] = class
	return nil
}

func (m *mockClassRepo) Delete(_ context.Context, id string) error {
	delete(m.classes, id)
	return nil
}

// ── Mock SectionRepository ──

type mockSectionRepo struct {
	sections map[string]*model.Section
	seq      int
}

func newMockSectionRepo() *mockSectionRepo {
	return &mockSectionRepo{sections: make(map[string]*model.Section)}
}

func (m *mockSectionRepo) Create(_ context.Context, section *model.Section) error {
	if section.SectionID == "" {
		m.seq++
		section.SectionID = fmt.Sprintf("section-%d", m.seq)
	}
	m.sections[section.SectionID] = section
	return nil
}

func (m *mockSectionRepo) GetByID(_ context.Context, id string) (*model.Section, error) {
	if s, ok := m.sections[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSectionRepo) GetByClassAndNumber(_ context.Context, classID string, number int) (*model.Section, error) {
	for _, s := range m.sections {
		if s.ClassID == classID && s.SectionNumber == number {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSectionRepo) ListByClass(_ context.Context, classID string) ([]model.Section, error) {
	var result []model.Section
	for _, s := range m.sections {
		if s.ClassID == classID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SectionNumber < result[j].SectionNumber
	})
	return result, nil
}

func (m *mockSectionRepo) ListByClassAndStudent(_ context.Context, classID, studentID string) ([]model.Section, error) {
	var result []model.Section
	for _, s := range m.sections {
		if s.ClassID == classID && s.StudentIDs.Contains(studentID) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockSectionRepo) ListContainingStudents(_ context.Context, classID, excludeID string, studentIDs []string) ([]model.Section, error) {
	var result []model.Section
	for _, s := range m.sections {
		if s.ClassID != classID || s.SectionID == excludeID {
			continue
		}
		for _, id := range studentIDs {
			if s.StudentIDs.Contains(id) {
				result = append(result, *s)
				break
			}
		}
	}
	return result, nil
}

func (m *mockSectionRepo) Update(_ context.Context, section *model.Section) error {
	m.sections[section.SectionID] = section
	return nil
}

func (m *mockSectionRepo) Delete(_ context.Context, id string) error {
	delete(m.sections, id)
	return nil
}

// ── Mock CodeRepository ──

type mockCodeRepo struct {
	codes map[string]*model.Code
	seq   int
}

func newMockCodeRepo() *mockCodeRepo {
	return &mockCodeRepo{codes: make(map[string]*model.Code)}
}

func (m *mockCodeRepo) Create(_ context.Context, code *model.Code) error {
	if code.CodeID == "" {
		m.seq++
		code.CodeID = fmt.Sprintf("code-%d", m.seq)
	}
	m.codes[code.CodeID] = code
	return nil
}

func (m *mockCodeRepo) GetByToken(_ context.Context, token string) (*model.Code, error) {
	for _, c := range m.codes {
		if c.Code == token {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCodeRepo) GetActiveBySection(_ context.Context, sectionID string) (*model.Code, error) {
	var latest *model.Code
	for _, c := range m.codes {
		if c.SectionID == sectionID && c.IsActive {
			if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
				latest = c
			}
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (m *mockCodeRepo) DeactivateBySection(_ context.Context, sectionID string) error {
	for _, c := range m.codes {
		if c.SectionID == sectionID {
			c.IsActive = false
		}
	}
	return nil
}

func (m *mockCodeRepo) DeactivateBySectionDay(_ context.Context, sectionID string, dayNumber int) error {
	for _, c := range m.codes {
		if c.SectionID == sectionID && c.DayNumber == dayNumber {
			c.IsActive = false
		}
	}
	return nil
}

func (m *mockCodeRepo) DeactivateExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, c := range m.codes {
		if c.IsActive && c.ExpiresAt.Before(cutoff) {
			c.IsActive = false
			n++
		}
	}
	return n, nil
}

// activeCodes 小节当前活跃码数量（测试断言用）
func (m *mockCodeRepo) activeCodes(sectionID string) int {
	n := 0
	for _, c := range m.codes {
		if c.SectionID == sectionID && c.IsActive {
			n++
		}
	}
	return n
}

// ── Mock AttendanceRepository ──

type mockAttendanceRepo struct {
	mu      sync.Mutex
	records []*model.Attendance
	seq     int
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{}
}

func (m *mockAttendanceRepo) Create(_ context.Context, att *model.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// 兜底唯一索引：带指纹与无指纹两条路径各自 (student, section, day) 唯一
	for _, r := range m.records {
		if r.StudentID != att.StudentID || r.SectionID != att.SectionID || r.DayNumber != att.DayNumber {
			continue
		}
		if (r.Fingerprint == nil) == (att.Fingerprint == nil) {
			if r.Fingerprint == nil || *r.Fingerprint == *att.Fingerprint {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	m.seq++
	att.AttendanceID = fmt.Sprintf("att-%d", m.seq)
	m.records = append(m.records, att)
	return nil
}

func (m *mockAttendanceRepo) FindDuplicateSince(_ context.Context, studentID, sectionID string, dayNumber int, fingerprint string, since time.Time) (*model.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.StudentID != studentID || r.SectionID != sectionID || r.DayNumber != dayNumber {
			continue
		}
		if r.RecordedAt.Before(since) {
			continue
		}
		if r.Fingerprint == nil || *r.Fingerprint == fingerprint {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockAttendanceRepo) Exists(_ context.Context, studentID, sectionID string, dayNumber int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.StudentID == studentID && r.SectionID == sectionID && r.DayNumber == dayNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAttendanceRepo) Upsert(_ context.Context, att *model.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.StudentID == att.StudentID && r.SectionID == att.SectionID &&
			r.DayNumber == att.DayNumber && r.Fingerprint == nil {
			r.ClassID = att.ClassID
			r.Status = att.Status
			r.RecordedAt = att.RecordedAt
			r.CodeID = att.CodeID
			att.AttendanceID = r.AttendanceID
			return nil
		}
	}
	m.seq++
	att.AttendanceID = fmt.Sprintf("att-%d", m.seq)
	m.records = append(m.records, att)
	return nil
}

func (m *mockAttendanceRepo) ListByClass(_ context.Context, classID string) ([]model.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Attendance
	for _, r := range m.records {
		if r.ClassID == classID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockAttendanceRepo) ListByClassAndSections(_ context.Context, classID string, sectionIDs []string) ([]model.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inSet := make(map[string]bool, len(sectionIDs))
	for _, id := range sectionIDs {
		inSet[id] = true
	}
	var result []model.Attendance
	for _, r := range m.records {
		if r.ClassID == classID && inSet[r.SectionID] {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordedAt.Before(result[j].RecordedAt)
	})
	return result, nil
}

func (m *mockAttendanceRepo) ListByStudent(_ context.Context, classID, studentID string, sectionIDs []string) ([]model.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inSet := make(map[string]bool, len(sectionIDs))
	for _, id := range sectionIDs {
		inSet[id] = true
	}
	var result []model.Attendance
	for _, r := range m.records {
		if r.ClassID == classID && r.StudentID == studentID && inSet[r.SectionID] {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DayNumber < result[j].DayNumber
	})
	return result, nil
}

func (m *mockAttendanceRepo) DistinctDays(_ context.Context, classID string, sectionIDs []string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inSet := make(map[string]bool, len(sectionIDs))
	for _, id := range sectionIDs {
		inSet[id] = true
	}
	daySet := make(map[int]bool)
	for _, r := range m.records {
		if r.ClassID == classID && inSet[r.SectionID] {
			daySet[r.DayNumber] = true
		}
	}
	var days []int
	for d := range daySet {
		days = append(days, d)
	}
	sort.Ints(days)
	return days, nil
}
