package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
	// ListStudentsByCodes 按学号批量查学生（名册导入用）
	ListStudentsByCodes(ctx context.Context, codes []string) ([]model.User, error)
}

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Find(&users).Error
	return users, err
}

func (r *userRepo) ListStudentsByCodes(ctx context.Context, codes []string) ([]model.User, error) {
	var users []model.User
	if len(codes) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("student_code IN ? AND role = ?", codes, model.RoleStudent).
		Find(&users).Error
	return users, err
}
