package model

import (
	"fmt"
	"time"
)

// SMTPSettings holds one user's mail transport connection parameters.
// Password is stored encrypted and decrypted only at transport construction.
type SMTPSettings struct {
	UserID    string    `bson:"_id" json:"user_id"`
	Host      string    `bson:"host" json:"host"`
	Port      int       `bson:"port" json:"port"`
	Secure    bool      `bson:"secure" json:"secure"` // implicit TLS when true, STARTTLS otherwise
	User      string    `bson:"user" json:"user"`
	Password  string    `bson:"password" json:"-"` // ciphertext
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (s *SMTPSettings) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidSMTPSettings)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535", ErrInvalidSMTPSettings)
	}
	if s.User == "" {
		return fmt.Errorf("%w: user is required", ErrInvalidSMTPSettings)
	}
	if s.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidSMTPSettings)
	}
	return nil
}
