package postgres

import (
	"LINKR-Backend/internal/domain"
	"LINKR-Backend/internal/repository"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStorage реализует интерфейс Storage для PostgreSQL
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

// New создает новый экземпляр PostgreSQL storage
func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log,
	}
}

// --- Link Methods ---

// SaveLink сохраняет новую ссылку
func (s *PostgresStorage) SaveLink(ctx context.Context, link *domain.ShortLink) error {
	var existing domain.ShortLink
	err := s.db.WithContext(ctx).Where("short_code = ?", link.ShortCode).First(&existing).Error
	if err == nil {
		return repository.ErrCodeExists
	}
	if err != gorm.ErrRecordNotFound {
		s.log.Error("failed to check code existence", zap.String("short_code", link.ShortCode), zap.Error(err))
		return fmt.Errorf("failed to check code: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		s.log.Error("failed to save link", zap.String("short_code", link.ShortCode), zap.Error(err))
		return fmt.Errorf("failed to save link: %w", err)
	}

	s.log.Info("saved new link", zap.String("short_code", link.ShortCode), zap.Int64("link_id", link.ID))
	return nil
}

// GetLinkByCode получает ссылку по короткому коду
func (s *PostgresStorage) GetLinkByCode(ctx context.Context, shortCode string) (*domain.ShortLink, error) {
	var link domain.ShortLink

	err := s.db.WithContext(ctx).Where("short_code = ?", shortCode).First(&link).Error
	if err == gorm.ErrRecordNotFound {
		return nil, repository.ErrCodeNotFound
	}
	if err != nil {
		s.log.Error("failed to get link", zap.String("short_code", shortCode), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &link, nil
}

// UpdateLink сохраняет изменения существующей ссылки
func (s *PostgresStorage) UpdateLink(ctx context.Context, link *domain.ShortLink) error {
	result := s.db.WithContext(ctx).Model(&domain.ShortLink{}).
		Where("id = ?", link.ID).
		Select("original_url", "encrypted_url", "encryption_iv", "is_encrypted",
			"is_enabled", "expires_at", "password_hash", "is_public",
			"security_status", "is_verified", "redirect_type", "updated_at").
		Updates(link)
	if result.Error != nil {
		s.log.Error("failed to update link", zap.Int64("link_id", link.ID), zap.Error(result.Error))
		return fmt.Errorf("failed to update link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrCodeNotFound
	}

	return nil
}

// RenameLink меняет короткий код ссылки с транзакционной проверкой уникальности
func (s *PostgresStorage) RenameLink(ctx context.Context, oldCode, newCode string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.ShortLink
		err := tx.Where("short_code = ?", newCode).First(&existing).Error
		if err == nil {
			return repository.ErrCodeExists
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to check new code: %w", err)
		}

		result := tx.Model(&domain.ShortLink{}).
			Where("short_code = ?", oldCode).
			Update("short_code", newCode)
		if result.Error != nil {
			return fmt.Errorf("failed to rename link: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrCodeNotFound
		}

		return nil
	})
}

// DeleteLink удаляет ссылку вместе с зависимыми строками аналитики
func (s *PostgresStorage) DeleteLink(ctx context.Context, shortCode string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link domain.ShortLink
		err := tx.Where("short_code = ?", shortCode).First(&link).Error
		if err == gorm.ErrRecordNotFound {
			return repository.ErrCodeNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get link: %w", err)
		}

		for _, model := range []interface{}{
			&domain.DailyClickRollup{},
			&domain.DailyReferrerRollup{},
			&domain.DailyGeoRollup{},
		} {
			if err := tx.Where("link_id = ?", link.ID).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete rollups: %w", err)
			}
		}

		if err := tx.Delete(&link).Error; err != nil {
			return fmt.Errorf("failed to delete link: %w", err)
		}

		s.log.Info("deleted link", zap.String("short_code", shortCode), zap.Int64("link_id", link.ID))
		return nil
	})
}

// CodeExists проверяет, существует ли короткий код
func (s *PostgresStorage) CodeExists(ctx context.Context, shortCode string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.ShortLink{}).Where("short_code = ?", shortCode).Count(&count).Error
	if err != nil {
		s.log.Error("failed to check code existence", zap.String("short_code", shortCode), zap.Error(err))
		return false, fmt.Errorf("failed to check code: %w", err)
	}

	return count > 0, nil
}

// --- Aggregation Methods ---

// IncrementVisits атомарно увеличивает счетчик посещений ссылки
func (s *PostgresStorage) IncrementVisits(ctx context.Context, linkID int64, by int64) error {
	err := s.db.WithContext(ctx).Model(&domain.ShortLink{}).
		Where("id = ?", linkID).
		Update("visits", gorm.Expr("visits + ?", by)).Error
	if err != nil {
		s.log.Error("failed to increment visits", zap.Int64("link_id", linkID), zap.Error(err))
		return fmt.Errorf("failed to increment visits: %w", err)
	}
	return nil
}

// UpsertDailyClicks атомарно увеличивает (или создает) дневной счетчик кликов
func (s *PostgresStorage) UpsertDailyClicks(ctx context.Context, linkID int64, day time.Time, by int64) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "link_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"clicks": gorm.Expr("daily_click_rollups.clicks + ?", by),
		}),
	}).Create(&domain.DailyClickRollup{LinkID: linkID, Date: day, Clicks: by}).Error
	if err != nil {
		s.log.Error("failed to upsert daily clicks", zap.Int64("link_id", linkID), zap.Error(err))
		return fmt.Errorf("failed to upsert daily clicks: %w", err)
	}
	return nil
}

// UpsertDailyReferrer атомарно увеличивает дневной счетчик по источнику перехода
func (s *PostgresStorage) UpsertDailyReferrer(ctx context.Context, linkID int64, day time.Time, referrer string, by int64) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "link_id"}, {Name: "date"}, {Name: "referrer"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"clicks": gorm.Expr("daily_referrer_rollups.clicks + ?", by),
		}),
	}).Create(&domain.DailyReferrerRollup{LinkID: linkID, Date: day, Referrer: referrer, Clicks: by}).Error
	if err != nil {
		s.log.Error("failed to upsert daily referrer", zap.Int64("link_id", linkID), zap.String("referrer", referrer), zap.Error(err))
		return fmt.Errorf("failed to upsert daily referrer: %w", err)
	}
	return nil
}

// UpsertDailyGeo атомарно увеличивает дневной счетчик по стране
func (s *PostgresStorage) UpsertDailyGeo(ctx context.Context, linkID int64, day time.Time, country string, by int64) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "link_id"}, {Name: "date"}, {Name: "country"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"clicks": gorm.Expr("daily_geo_rollups.clicks + ?", by),
		}),
	}).Create(&domain.DailyGeoRollup{LinkID: linkID, Date: day, Country: country, Clicks: by}).Error
	if err != nil {
		s.log.Error("failed to upsert daily geo", zap.Int64("link_id", linkID), zap.String("country", country), zap.Error(err))
		return fmt.Errorf("failed to upsert daily geo: %w", err)
	}
	return nil
}

// --- Rollup Readback ---

// ListDailyClicks возвращает дневные счетчики кликов за период
func (s *PostgresStorage) ListDailyClicks(ctx context.Context, linkID int64, from, to time.Time) ([]domain.DailyClickRollup, error) {
	var rows []domain.DailyClickRollup
	err := s.db.WithContext(ctx).
		Where("link_id = ? AND date >= ? AND date <= ?", linkID, from, to).
		Order("date ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list daily clicks: %w", err)
	}
	return rows, nil
}

// ListDailyReferrers возвращает дневные счетчики по источникам за период
func (s *PostgresStorage) ListDailyReferrers(ctx context.Context, linkID int64, from, to time.Time) ([]domain.DailyReferrerRollup, error) {
	var rows []domain.DailyReferrerRollup
	err := s.db.WithContext(ctx).
		Where("link_id = ? AND date >= ? AND date <= ?", linkID, from, to).
		Order("date ASC, clicks DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list daily referrers: %w", err)
	}
	return rows, nil
}

// ListDailyGeo возвращает дневные счетчики по странам за период
func (s *PostgresStorage) ListDailyGeo(ctx context.Context, linkID int64, from, to time.Time) ([]domain.DailyGeoRollup, error) {
	var rows []domain.DailyGeoRollup
	err := s.db.WithContext(ctx).
		Where("link_id = ? AND date >= ? AND date <= ?", linkID, from, to).
		Order("date ASC, clicks DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list daily geo: %w", err)
	}
	return rows, nil
}
