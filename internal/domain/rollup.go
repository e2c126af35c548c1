package domain

import "time"

// Fallback bucket values used when an analytics dimension is unavailable.
const (
	ReferrerDirect = "Direct"
	ReferrerOther  = "Other"
	CountryUnknown = "Unknown"
)

// DailyClickRollup holds the total click count for one link and one
// UTC calendar day. Unique on (link_id, date).
type DailyClickRollup struct {
	ID     int64     `gorm:"primaryKey;column:id" json:"id"`
	LinkID int64     `gorm:"column:link_id;not null;uniqueIndex:idx_clicks_link_day" json:"link_id"`
	Date   time.Time `gorm:"column:date;not null;uniqueIndex:idx_clicks_link_day" json:"date"`
	Clicks int64     `gorm:"column:clicks;not null;default:0" json:"clicks"`
}

// TableName возвращает название таблицы для GORM
func (DailyClickRollup) TableName() string {
	return "daily_click_rollups"
}

// DailyReferrerRollup partitions a day's clicks by referrer host
// ("Direct" when no referrer was sent). Unique on (link_id, date, referrer).
type DailyReferrerRollup struct {
	ID       int64     `gorm:"primaryKey;column:id" json:"id"`
	LinkID   int64     `gorm:"column:link_id;not null;uniqueIndex:idx_ref_link_day_ref" json:"link_id"`
	Date     time.Time `gorm:"column:date;not null;uniqueIndex:idx_ref_link_day_ref" json:"date"`
	Referrer string    `gorm:"column:referrer;size:255;not null;uniqueIndex:idx_ref_link_day_ref" json:"referrer"`
	Clicks   int64     `gorm:"column:clicks;not null;default:0" json:"clicks"`
}

// TableName возвращает название таблицы для GORM
func (DailyReferrerRollup) TableName() string {
	return "daily_referrer_rollups"
}

// DailyGeoRollup partitions a day's clicks by ISO country code
// ("Unknown" when unavailable). Unique on (link_id, date, country).
type DailyGeoRollup struct {
	ID      int64     `gorm:"primaryKey;column:id" json:"id"`
	LinkID  int64     `gorm:"column:link_id;not null;uniqueIndex:idx_geo_link_day_country" json:"link_id"`
	Date    time.Time `gorm:"column:date;not null;uniqueIndex:idx_geo_link_day_country" json:"date"`
	Country string    `gorm:"column:country;size:16;not null;uniqueIndex:idx_geo_link_day_country" json:"country"`
	Clicks  int64     `gorm:"column:clicks;not null;default:0" json:"clicks"`
}

// TableName возвращает название таблицы для GORM
func (DailyGeoRollup) TableName() string {
	return "daily_geo_rollups"
}
