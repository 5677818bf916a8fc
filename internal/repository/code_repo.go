package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
)

// CodeRepository 二维码数据访问接口
// 码只停用不删除；同一 (section, day) 至多一个活跃码由轮换原子维护
type CodeRepository interface {
	Create(ctx context.Context, code *model.Code) error
	GetByToken(ctx context.Context, token string) (*model.Code, error)
	GetActiveBySection(ctx context.Context, sectionID string) (*model.Code, error)
	// DeactivateBySection 停用小节当前所有活跃码（轮换前置步骤）
	DeactivateBySection(ctx context.Context, sectionID string) error
	// DeactivateBySectionDay 停用小节指定课次的所有活跃码（关闭小节）
	DeactivateBySectionDay(ctx context.Context, sectionID string, dayNumber int) error
	// DeactivateExpiredBefore 停用过期时间早于 cutoff 的活跃码（后台清理）
	DeactivateExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type codeRepo struct {
	db *gorm.DB
}

// NewCodeRepo 创建 CodeRepository 实例
func NewCodeRepo(db *gorm.DB) CodeRepository {
	return &codeRepo{db: db}
}

func (r *codeRepo) Create(ctx context.Context, code *model.Code) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *codeRepo) GetByToken(ctx context.Context, token string) (*model.Code, error) {
	var code model.Code
	err := r.db.WithContext(ctx).
		Where("code = ?", token).
		First(&code).Error
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *codeRepo) GetActiveBySection(ctx context.Context, sectionID string) (*model.Code, error) {
	var code model.Code
	err := r.db.WithContext(ctx).
		Where("section_id = ? AND is_active = ?", sectionID, true).
		Order("created_at DESC").
		First(&code).Error
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *codeRepo) DeactivateBySection(ctx context.Context, sectionID string) error {
	return r.db.WithContext(ctx).
		Model(&model.Code{}).
		Where("section_id = ? AND is_active = ?", sectionID, true).
		Update("is_active", false).Error
}

func (r *codeRepo) DeactivateBySectionDay(ctx context.Context, sectionID string, dayNumber int) error {
	return r.db.WithContext(ctx).
		Model(&model.Code{}).
		Where("section_id = ? AND day_number = ? AND is_active = ?", sectionID, dayNumber, true).
		Update("is_active", false).Error
}

func (r *codeRepo) DeactivateExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Code{}).
		Where("is_active = ? AND expires_at < ?", true, cutoff).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
