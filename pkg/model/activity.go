package model

import (
	"time"

	"github.com/google/uuid"
)

// ActivityEntry is a thin audit record of sandbox lifecycle actions.
type ActivityEntry struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	SandboxID *uuid.UUID `gorm:"type:uuid;index"`
	Action    string     `gorm:"not null"`
	Detail    string
	CreatedAt time.Time `gorm:"index"`
}
