package onboard

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthorityUser is the default authority granted at registration.
const AuthorityUser = "USER"

// Account is the onboarding account model. Verification columns track the
// pending one-time email code; Enabled flips to true once the code is
// confirmed and the verification columns are cleared.
type Account struct {
	bun.BaseModel         `bun:"table:accounts,alias:acc"`
	ID                    uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username              string     `bun:"username,notnull,unique" json:"username,omitempty"`
	DisplayName           string     `bun:"display_name,notnull" json:"display_name,omitempty"`
	Email                 string     `bun:"email,notnull,unique" json:"email,omitempty"`
	BirthDate             string     `bun:"birth_date" json:"birth_date,omitempty"`
	PhoneNumber           string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash          string     `bun:"password_hash" json:"-"`
	Enabled               bool       `bun:"enabled" json:"enabled,omitempty"`
	VerificationCode      *int64     `bun:"verification_code" json:"-"`
	VerificationExpiresAt *time.Time `bun:"verification_expires_at,nullzero" json:"-"`
	LastCodeSentAt        *time.Time `bun:"last_code_sent_at,nullzero" json:"-"`
	Authorities           []string   `bun:"authorities" json:"authorities,omitempty"`
	CreatedAt             *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt             *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt             *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// GrantAuthority appends an authority, ignoring duplicates.
func (a *Account) GrantAuthority(authority string) *Account {
	if authority == "" || slices.Contains(a.Authorities, authority) {
		return a
	}
	a.Authorities = append(a.Authorities, authority)
	return a
}

// HasAuthority reports whether the authority was granted.
func (a *Account) HasAuthority(authority string) bool {
	return slices.Contains(a.Authorities, authority)
}

// HasPendingCode reports whether a verification code is outstanding. A
// pending code always carries an expiry.
func (a *Account) HasPendingCode() bool {
	return a.VerificationCode != nil && a.VerificationExpiresAt != nil
}

// ClearVerification removes the pending code and its expiry.
func (a *Account) ClearVerification() {
	a.VerificationCode = nil
	a.VerificationExpiresAt = nil
}

// Role maps an authority string to a grantable role row.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Authority     string     `bun:"authority,notnull,unique" json:"authority,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// AccountResponse is the sanitized account representation returned by the
// HTTP surface. Never includes the password hash or verification state.
type AccountResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	BirthDate   string `json:"birth_date,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// NewAccountResponse builds the sanitized view of an account.
func NewAccountResponse(account *Account) AccountResponse {
	if account == nil {
		return AccountResponse{}
	}
	return AccountResponse{
		Username:    account.Username,
		DisplayName: account.DisplayName,
		Email:       account.Email,
		BirthDate:   account.BirthDate,
		PhoneNumber: account.PhoneNumber,
	}
}
