package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GiftListFilter 礼物列表筛选
type GiftListFilter struct {
	Code            string
	Status          string
	DonorUserID     uint
	RecipientUserID uint
	RecipientType   string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Page            int
	PageSize        int
}

// GiftStats 礼物统计结果
type GiftStats struct {
	StatusCounts      map[string]int64 `json:"status_counts"`
	ActivatedTotal    models.Money     `json:"activated_total"`
	UniqueDonors      int64            `json:"unique_donors"`
	UniqueRecipients  int64            `json:"unique_recipients"`
	CreatedLast24h    int64            `json:"created_last_24h"`
	ActivatedLast24h  int64            `json:"activated_last_24h"`
}

// GiftUserStats 单用户礼物统计结果
type GiftUserStats struct {
	SentCount       int64            `json:"sent_count"`
	ReceivedCount   int64            `json:"received_count"`
	TotalSpent      models.Money     `json:"total_spent"`
	SentByStatus    map[string]int64 `json:"sent_by_status"`
}

// GiftRepository 礼物仓储接口
type GiftRepository interface {
	Create(gift *models.Gift) error
	GetByID(id uint) (*models.Gift, error)
	GetByIDForUpdate(id uint) (*models.Gift, error)
	GetByCode(code string) (*models.Gift, error)
	GetByCodeForUpdate(code string) (*models.Gift, error)
	GetByIdempotencyKey(key string) (*models.Gift, error)
	CodeExists(code string) (bool, error)
	CountByDonorSince(donorUserID uint, since time.Time) (int64, error)
	SumSpendingByDonorSince(donorUserID uint, since time.Time) (decimal.Decimal, error)
	List(filter GiftListFilter) ([]models.Gift, int64, error)
	Update(gift *models.Gift) error
	ExpireDue(now time.Time) (int64, error)
	Stats() (*GiftStats, error)
	UserStats(userID uint) (*GiftUserStats, error)
	WithTx(tx *gorm.DB) *GormGiftRepository
}

// spendingStatuses 计入当日消费额的礼物状态
var spendingStatuses = []string{
	constants.GiftStatusPendingPayment,
	constants.GiftStatusReady,
	constants.GiftStatusActivated,
}

// GormGiftRepository GORM 礼物仓储实现
type GormGiftRepository struct {
	db *gorm.DB
}

// NewGiftRepository 创建礼物仓储
func NewGiftRepository(db *gorm.DB) *GormGiftRepository {
	return &GormGiftRepository{db: db}
}

// WithTx 绑定事务
func (r *GormGiftRepository) WithTx(tx *gorm.DB) *GormGiftRepository {
	if tx == nil {
		return r
	}
	return &GormGiftRepository{db: tx}
}

// Create 创建礼物
func (r *GormGiftRepository) Create(gift *models.Gift) error {
	if gift == nil {
		return errors.New("invalid gift")
	}
	return r.db.Create(gift).Error
}

// GetByID 根据 ID 查询礼物
func (r *GormGiftRepository) GetByID(id uint) (*models.Gift, error) {
	if id == 0 {
		return nil, nil
	}
	var gift models.Gift
	if err := r.db.Preload("Tariff").First(&gift, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &gift, nil
}

// GetByIDForUpdate 根据 ID 加锁查询礼物
func (r *GormGiftRepository) GetByIDForUpdate(id uint) (*models.Gift, error) {
	if id == 0 {
		return nil, nil
	}
	var gift models.Gift
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&gift, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &gift, nil
}

// GetByCode 根据兑换码查询礼物
func (r *GormGiftRepository) GetByCode(code string) (*models.Gift, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" {
		return nil, nil
	}
	var gift models.Gift
	if err := r.db.Preload("Tariff").Where("code = ?", code).First(&gift).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &gift, nil
}

// GetByCodeForUpdate 根据兑换码加锁查询礼物
func (r *GormGiftRepository) GetByCodeForUpdate(code string) (*models.Gift, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" {
		return nil, nil
	}
	var gift models.Gift
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&gift).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &gift, nil
}

// GetByIdempotencyKey 根据幂等键查询礼物
func (r *GormGiftRepository) GetByIdempotencyKey(key string) (*models.Gift, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var gift models.Gift
	if err := r.db.Preload("Tariff").Where("idempotency_key = ?", key).First(&gift).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &gift, nil
}

// CodeExists 判断兑换码是否已存在
func (r *GormGiftRepository) CodeExists(code string) (bool, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" {
		return false, nil
	}
	var count int64
	if err := r.db.Model(&models.Gift{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountByDonorSince 统计赠送人在指定时间后创建的礼物数量（不含已取消与支付失败）
func (r *GormGiftRepository) CountByDonorSince(donorUserID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Gift{}).
		Where("donor_user_id = ? AND created_at >= ?", donorUserID, since).
		Where("status NOT IN ?", []string{constants.GiftStatusCancelled, constants.GiftStatusPaymentFailed}).
		Count(&count).Error
	return count, err
}

// SumSpendingByDonorSince 统计赠送人在指定时间后占用的消费额
func (r *GormGiftRepository) SumSpendingByDonorSince(donorUserID uint, since time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.Model(&models.Gift{}).
		Select("COALESCE(SUM(price), 0)").
		Where("donor_user_id = ? AND created_at >= ?", donorUserID, since).
		Where("status IN ?", spendingStatuses).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// List 查询礼物列表
func (r *GormGiftRepository) List(filter GiftListFilter) ([]models.Gift, int64, error) {
	query := r.db.Model(&models.Gift{}).Preload("Tariff")
	if code := strings.TrimSpace(strings.ToUpper(filter.Code)); code != "" {
		query = query.Where("code LIKE ?", "%"+code+"%")
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.DonorUserID > 0 {
		query = query.Where("donor_user_id = ?", filter.DonorUserID)
	}
	if filter.RecipientUserID > 0 {
		query = query.Where("recipient_user_id = ?", filter.RecipientUserID)
	}
	if recipientType := strings.TrimSpace(filter.RecipientType); recipientType != "" {
		query = query.Where("recipient_type = ?", recipientType)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var gifts []models.Gift
	if err := query.Order("id desc").Find(&gifts).Error; err != nil {
		return nil, 0, err
	}
	return gifts, total, nil
}

// Update 更新礼物
func (r *GormGiftRepository) Update(gift *models.Gift) error {
	if gift == nil {
		return errors.New("invalid gift")
	}
	return r.db.Save(gift).Error
}

// ExpireDue 批量标记已到期的待兑换礼物
func (r *GormGiftRepository) ExpireDue(now time.Time) (int64, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	result := r.db.Model(&models.Gift{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", constants.GiftStatusReady, now).
		Updates(map[string]interface{}{
			"status":     constants.GiftStatusExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// UserStats 汇总单个用户的礼物统计
func (r *GormGiftRepository) UserStats(userID uint) (*GiftUserStats, error) {
	if userID == 0 {
		return nil, errors.New("invalid user id")
	}
	stats := &GiftUserStats{SentByStatus: map[string]int64{}}

	type statusRow struct {
		Status string
		Count  int64
	}
	var rows []statusRow
	if err := r.db.Model(&models.Gift{}).
		Select("status, COUNT(*) AS count").
		Where("donor_user_id = ?", userID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.SentByStatus[row.Status] = row.Count
		stats.SentCount += row.Count
	}

	if err := r.db.Model(&models.Gift{}).
		Where("recipient_user_id = ? AND status = ?", userID, constants.GiftStatusActivated).
		Count(&stats.ReceivedCount).Error; err != nil {
		return nil, err
	}

	var spent decimal.NullDecimal
	if err := r.db.Model(&models.Gift{}).
		Select("COALESCE(SUM(price), 0)").
		Where("donor_user_id = ?", userID).
		Where("status NOT IN ?", []string{constants.GiftStatusCancelled, constants.GiftStatusPaymentFailed}).
		Scan(&spent).Error; err != nil {
		return nil, err
	}
	if spent.Valid {
		stats.TotalSpent = models.NewMoneyFromDecimal(spent.Decimal)
	}

	return stats, nil
}

// Stats 汇总礼物统计
func (r *GormGiftRepository) Stats() (*GiftStats, error) {
	stats := &GiftStats{StatusCounts: map[string]int64{}}

	type statusRow struct {
		Status string
		Count  int64
	}
	var rows []statusRow
	if err := r.db.Model(&models.Gift{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.StatusCounts[row.Status] = row.Count
	}

	var activatedTotal decimal.NullDecimal
	if err := r.db.Model(&models.Gift{}).
		Select("COALESCE(SUM(price), 0)").
		Where("status = ?", constants.GiftStatusActivated).
		Scan(&activatedTotal).Error; err != nil {
		return nil, err
	}
	if activatedTotal.Valid {
		stats.ActivatedTotal = models.NewMoneyFromDecimal(activatedTotal.Decimal)
	}

	if err := r.db.Model(&models.Gift{}).
		Distinct("donor_user_id").
		Count(&stats.UniqueDonors).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Gift{}).
		Where("recipient_user_id IS NOT NULL").
		Distinct("recipient_user_id").
		Count(&stats.UniqueRecipients).Error; err != nil {
		return nil, err
	}

	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	if err := r.db.Model(&models.Gift{}).
		Where("created_at >= ?", dayAgo).
		Count(&stats.CreatedLast24h).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&models.Gift{}).
		Where("activated_at IS NOT NULL AND activated_at >= ?", dayAgo).
		Count(&stats.ActivatedLast24h).Error; err != nil {
		return nil, err
	}

	return stats, nil
}
