package models

import "time"

// Signature proves that a user signed a document exactly once.
type Signature struct {
	SignatureID      int64     `gorm:"primaryKey;column:signature_id" json:"signature_id"`
	DocumentID       int64     `gorm:"column:document_id;uniqueIndex:idx_signatures_document_user" json:"document_id"`
	UserID           int       `gorm:"column:user_id;uniqueIndex:idx_signatures_document_user" json:"user_id"`
	SignatureHash    string    `gorm:"column:signature_hash;size:64" json:"signature_hash"`
	Nonce            *string   `gorm:"column:nonce;size:36" json:"-"`
	SignedAtUnixNano *int64    `gorm:"column:signed_at_unix_nano" json:"-"`
	SignedAt         time.Time `gorm:"column:signed_at;index" json:"signed_at"`
}

func (Signature) TableName() string {
	return "signatures"
}
