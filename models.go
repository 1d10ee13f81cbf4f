package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity record owned by the credential store. Username is
// the stable primary key for token subjects; the raw password never lands
// here, only its bcrypt hash.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActive      bool       `bun:"is_active,notnull,default:true" json:"is_active,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RevokedToken is an append-only ledger entry marking a refresh token's jti
// permanently unusable. Rows are never updated or deleted; expired tokens
// fail verification on their own, so garbage collection is unnecessary for
// correctness.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rvk"`
	JTI           string    `bun:"jti,pk" json:"jti"`
	Subject       string    `bun:"subject,notnull" json:"subject"`
	RevokedAt     time.Time `bun:"revoked_at,notnull,default:current_timestamp" json:"revoked_at"`
}
