package flows

import "time"

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login    LoginDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Register RegisterDeps
	Validate ValidateDeps
	Health   HealthDeps
}

// UserRecord is the flow-local user model.
type UserRecord struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// RefreshRecord is the flow-local persisted refresh-token row.
type RefreshRecord struct {
	JTI       string
	UserID    int64
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// IssuedPair is a freshly signed access/refresh pair plus the refresh record
// the caller must persist.
type IssuedPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Record           RefreshRecord
}
