// internal/service/ledger/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lekker/internal/service/ledger/domain"
)

// GormLedgerRepository 是 domain.Repository 的 GORM 实现。
// 所有竞争写入（促销码额度、支付单状态）都只依赖数据库的
// 行级锁与条件更新，不使用任何进程内锁——审核和购买
// 可能运行在不同进程里。
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository 创建一个新的 GORM 仓储实例
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// UpsertUser 插入用户，冲突时只刷新用户名和显示名。
func (r *GormLedgerRepository) UpsertUser(ctx context.Context, user domain.User) error {
	model := UserModel{
		TelegramID: user.TelegramID,
		Username:   user.Username,
		Name:       user.Name,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "name"}),
	}).Create(&model).Error
	return errors.Wrap(err, "upsert user")
}

// FindPromoCode 按代码查找促销码。
func (r *GormLedgerRepository) FindPromoCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	var model PromoCodeModel
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "find promo code")
	}
	return toDomainPromoCode(&model), nil
}

// CreatePromoCode 新建促销码，唯一索引冲突映射为 ErrPromoExists。
func (r *GormLedgerRepository) CreatePromoCode(ctx context.Context, promo domain.PromoCode) (uint, error) {
	model := PromoCodeModel{
		Code:            promo.Code,
		AdminTelegramID: promo.AdminTelegramID,
		Value:           promo.Value,
		UsageLimit:      promo.UsageLimit,
		UsedCount:       0,
	}
	err := r.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, domain.ErrPromoExists
		}
		return 0, errors.Wrap(err, "create promo code")
	}
	return model.ID, nil
}

// CreatePayment 在一个事务里完成促销码兑换和支付单创建。
//
// 兑换不做“先读后写”：直接用条件更新占用一次额度，
// 零行受影响即代表促销码不存在或已用尽。两个并发买家抢
// 最后一次额度时，行锁会把后到者阻塞到先到者提交，
// 条件重新求值后后到者拿到 ErrPromoInvalid。
func (r *GormLedgerRepository) CreatePayment(ctx context.Context, buyerID int64, quantity int, amount float64, promoCode string) (uint, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	var paymentID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var promoID *uint
		if promoCode != "" {
			res := tx.Model(&PromoCodeModel{}).
				Where("code = ? AND used_count < usage_limit", promoCode).
				UpdateColumn("used_count", gorm.Expr("used_count + 1"))
			if res.Error != nil {
				return errors.Wrap(res.Error, "redeem promo code")
			}
			if res.RowsAffected == 0 {
				return domain.ErrPromoInvalid
			}
			var promo PromoCodeModel
			if err := tx.Where("code = ?", promoCode).First(&promo).Error; err != nil {
				return errors.Wrap(err, "reload promo code")
			}
			promoID = &promo.ID
		}

		payment := PaymentModel{
			BuyerTelegramID: buyerID,
			Quantity:        quantity,
			Amount:          amount,
			PromoCodeID:     promoID,
			Status:          string(domain.PaymentPending),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return errors.Wrap(err, "insert payment")
		}
		paymentID = payment.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return paymentID, nil
}

// FindPayment 按 ID 查找支付单。
func (r *GormLedgerRepository) FindPayment(ctx context.Context, id uint) (*domain.Payment, error) {
	var model PaymentModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "find payment")
	}
	return toDomainPayment(&model), nil
}

// Approve 把支付单置为 approved 并签发全部票。
//
// 状态迁移是一次条件更新（pending → approved），天然幂等：
// 第二个审核者会看到零行受影响，然后根据当前状态得到
// ErrAlreadyProcessed 或 ErrNotFound。签发在同一事务里，
// 所以崩溃或冲突要么留下完整的一批票，要么什么都没有。
func (r *GormLedgerRepository) Approve(ctx context.Context, paymentID uint) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.transition(tx, paymentID, domain.PaymentApproved); err != nil {
			return err
		}

		var payment PaymentModel
		if err := tx.First(&payment, paymentID).Error; err != nil {
			return errors.Wrap(err, "reload payment")
		}

		tokens = make([]string, 0, payment.Quantity)
		now := time.Now()
		for i := 0; i < payment.Quantity; i++ {
			token := domain.MintToken(payment.BuyerTelegramID, now)
			ticket := TicketModel{
				Token:           token,
				OwnerTelegramID: payment.BuyerTelegramID,
				PaymentID:       payment.ID,
				Status:          string(domain.TicketActive),
			}
			if err := tx.Create(&ticket).Error; err != nil {
				return errors.Wrap(err, "insert ticket")
			}
			tokens = append(tokens, token)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Reject 把支付单置为 rejected，状态判定与 Approve 一致。
func (r *GormLedgerRepository) Reject(ctx context.Context, paymentID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.transition(tx, paymentID, domain.PaymentRejected)
	})
}

// transition 执行 pending → target 的条件更新，
// 零行受影响时区分“已处理”和“不存在”。
func (r *GormLedgerRepository) transition(tx *gorm.DB, paymentID uint, target domain.PaymentStatus) error {
	res := tx.Model(&PaymentModel{}).
		Where("id = ? AND status = ?", paymentID, string(domain.PaymentPending)).
		Update("status", string(target))
	if res.Error != nil {
		return errors.Wrap(res.Error, "update payment status")
	}
	if res.RowsAffected == 0 {
		var payment PaymentModel
		err := tx.First(&payment, paymentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "check payment status")
		}
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// UseTicket 核销一张票，同样用条件更新保证只成功一次。
func (r *GormLedgerRepository) UseTicket(ctx context.Context, token string) error {
	res := r.db.WithContext(ctx).Model(&TicketModel{}).
		Where("token = ? AND status = ?", token, string(domain.TicketActive)).
		Update("status", string(domain.TicketUsed))
	if res.Error != nil {
		return errors.Wrap(res.Error, "use ticket")
	}
	if res.RowsAffected == 0 {
		return domain.ErrTicketUnavailable
	}
	return nil
}

// ActiveTicketCount 返回某个用户持有的有效票数。
func (r *GormLedgerRepository) ActiveTicketCount(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&TicketModel{}).
		Where("owner_telegram_id = ? AND status = ?", ownerID, string(domain.TicketActive)).
		Count(&count).Error
	return count, errors.Wrap(err, "count active tickets")
}

// Totals 返回管理面的汇总统计。
func (r *GormLedgerRepository) Totals(ctx context.Context) (domain.Totals, error) {
	var totals domain.Totals
	db := r.db.WithContext(ctx)
	if err := db.Model(&UserModel{}).Count(&totals.Users).Error; err != nil {
		return totals, errors.Wrap(err, "count users")
	}
	if err := db.Model(&TicketModel{}).
		Where("status = ?", string(domain.TicketActive)).
		Count(&totals.ActiveTickets).Error; err != nil {
		return totals, errors.Wrap(err, "count active tickets")
	}
	var sum *float64
	if err := db.Model(&PaymentModel{}).
		Where("status = ?", string(domain.PaymentApproved)).
		Select("SUM(amount)").Scan(&sum).Error; err != nil {
		return totals, errors.Wrap(err, "sum approved sales")
	}
	if sum != nil {
		totals.SalesAmount = *sum
	}
	return totals, nil
}

// ListUsers 返回用户快照及各自的有效票数。
func (r *GormLedgerRepository) ListUsers(ctx context.Context) ([]domain.UserTicketCount, error) {
	var models []UserModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	out := make([]domain.UserTicketCount, 0, len(models))
	for i := range models {
		count, err := r.ActiveTicketCount(ctx, models[i].TelegramID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.UserTicketCount{User: *toDomainUser(&models[i]), ActiveTickets: count})
	}
	return out, nil
}

// ListPayments 返回支付单快照，最新的在前。
func (r *GormLedgerRepository) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	var models []PaymentModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	out := make([]domain.Payment, 0, len(models))
	for i := range models {
		out = append(out, *toDomainPayment(&models[i]))
	}
	return out, nil
}

// ListTickets 返回票快照，最新的在前。
func (r *GormLedgerRepository) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	var models []TicketModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list tickets")
	}
	out := make([]domain.Ticket, 0, len(models))
	for i := range models {
		out = append(out, *toDomainTicket(&models[i]))
	}
	return out, nil
}
