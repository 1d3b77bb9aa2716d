package db

import (
	"github.com/vitiko98/mopidy-qobuz/backend"
	"gorm.io/gorm"
)

// SessionModel stores one login per service account.
type SessionModel struct {
	gorm.Model
	Service    string `gorm:"not null;index:idx_service_username,unique"`
	Username   string `gorm:"not null;index:idx_service_username,unique"`
	AuthToken  string `gorm:"not null"`
	Membership string
}

func (SessionModel) TableName() string {
	return "sessions"
}

func sessionToInternal(model SessionModel) *backend.Session {
	return &backend.Session{
		Service:    model.Service,
		Username:   model.Username,
		AuthToken:  model.AuthToken,
		Membership: model.Membership,
		UpdatedAt:  model.UpdatedAt,
	}
}
