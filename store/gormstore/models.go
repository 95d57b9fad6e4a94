package gormstore

import (
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

type userModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"size:50;uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"size:16;not null;default:user"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

type refreshTokenModel struct {
	JTI       string    `gorm:"primaryKey;size:36"`
	UserID    int64     `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Revoked   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (refreshTokenModel) TableName() string { return "refresh_tokens" }

func (m userModel) toUser() *goGuard.User {
	return &goGuard.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Role:         goGuard.Role(m.Role),
		CreatedAt:    m.CreatedAt,
	}
}

func (m refreshTokenModel) toRecord() *goGuard.RefreshTokenRecord {
	return &goGuard.RefreshTokenRecord{
		JTI:       m.JTI,
		UserID:    m.UserID,
		ExpiresAt: m.ExpiresAt,
		Revoked:   m.Revoked,
		CreatedAt: m.CreatedAt,
	}
}

func refreshModel(r goGuard.RefreshTokenRecord) refreshTokenModel {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return refreshTokenModel{
		JTI:       r.JTI,
		UserID:    r.UserID,
		ExpiresAt: r.ExpiresAt.UTC(),
		Revoked:   r.Revoked,
		CreatedAt: created.UTC(),
	}
}
