package domain

import "time"

// SecurityStatus is the safety classification of a link destination.
type SecurityStatus string

const (
	SecuritySecure  SecurityStatus = "secure"
	SecurityUnsafe  SecurityStatus = "unsafe"
	SecurityUnknown SecurityStatus = "unknown"
)

// Valid redirect status codes a link may be configured with.
const (
	RedirectMovedPermanently  = 301
	RedirectFound             = 302
	RedirectTemporaryRedirect = 307
	RedirectPermanentRedirect = 308
)

// ShortLink is the central entity: a public short code mapped to a
// destination URL with access-control and safety attributes.
type ShortLink struct {
	ID        int64  `gorm:"primaryKey;column:id" json:"id"`
	ShortCode string `gorm:"column:short_code;size:64;uniqueIndex;not null" json:"short_code"`

	// Exactly one destination representation is authoritative at a time,
	// selected by IsEncrypted.
	OriginalURL  string `gorm:"column:original_url;type:text" json:"original_url"`
	EncryptedURL string `gorm:"column:encrypted_url;type:text" json:"encrypted_url,omitempty"`
	EncryptionIV string `gorm:"column:encryption_iv;size:64" json:"encryption_iv,omitempty"`
	IsEncrypted  bool   `gorm:"column:is_encrypted;not null;default:false" json:"is_encrypted"`

	IsEnabled    bool           `gorm:"column:is_enabled;not null;default:true" json:"is_enabled"`
	ExpiresAt    *time.Time     `gorm:"column:expires_at" json:"expires_at,omitempty"`
	PasswordHash *string        `gorm:"column:password_hash;size:100" json:"password_hash,omitempty"`
	IsPublic     bool           `gorm:"column:is_public;not null;default:false" json:"is_public"`

	SecurityStatus SecurityStatus `gorm:"column:security_status;size:10;not null;default:unknown" json:"security_status"`
	IsVerified     bool           `gorm:"column:is_verified;not null;default:false" json:"is_verified"`

	RedirectType int   `gorm:"column:redirect_type;not null;default:302" json:"redirect_type"`
	Visits       int64 `gorm:"column:visits;not null;default:0" json:"visits"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName возвращает название таблицы для GORM
func (ShortLink) TableName() string {
	return "short_links"
}

// Destination returns the authoritative destination for the redirect.
// For encrypted links this is the ciphertext; decryption happens
// client-side and is out of this service's hands.
func (l *ShortLink) Destination() string {
	if l.IsEncrypted {
		return l.EncryptedURL
	}
	return l.OriginalURL
}

// IsExpired reports whether the link has an expiry in the past.
func (l *ShortLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// IsPasswordProtected reports whether a password gate is configured.
func (l *ShortLink) IsPasswordProtected() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}
