package flows

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrEthical07/goGuard/internal/limiters"
)

// RegisterFailureKind classifies account creation failures.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureNotReady
	RegisterFailureRateLimited
	RegisterFailureInvalidUsername
	RegisterFailureInvalidPassword
	RegisterFailureHash
	RegisterFailureDuplicate
	RegisterFailureCreate
)

type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	User    UserRecord
}

type RegisterDeps struct {
	UsernameMin int
	UsernameMax int
	PasswordMin int
	PasswordMax int
	DefaultRole string

	ClientIPFromContext func(context.Context) string
	CheckRate           func(ctx context.Context, identity string) error

	HashPassword  func(string) (string, error)
	CreateUser    func(ctx context.Context, username, hash, role string) (UserRecord, error)
	UsernameTaken error
}

// RunRegister validates input, hashes the password and creates a user with
// the default role.
func RunRegister(ctx context.Context, username, password string, deps RegisterDeps) RegisterResult {
	if deps.HashPassword == nil || deps.CreateUser == nil {
		return RegisterResult{Failure: RegisterFailureNotReady}
	}

	if deps.CheckRate != nil {
		ip := ""
		if deps.ClientIPFromContext != nil {
			ip = deps.ClientIPFromContext(ctx)
		}
		if err := deps.CheckRate(ctx, ip); err != nil {
			return RegisterResult{Failure: RegisterFailureRateLimited, Err: err}
		}
	}

	username = limiters.NormalizeUsername(username)
	if err := ValidateUsername(username, deps.UsernameMin, deps.UsernameMax); err != nil {
		return RegisterResult{Failure: RegisterFailureInvalidUsername, Err: err}
	}
	if n := utf8.RuneCountInString(password); n < deps.PasswordMin || n > deps.PasswordMax {
		return RegisterResult{Failure: RegisterFailureInvalidPassword, Err: errors.New("password length out of range")}
	}

	hash, err := deps.HashPassword(password)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureHash, Err: err}
	}

	user, err := deps.CreateUser(ctx, username, hash, deps.DefaultRole)
	if err != nil {
		if deps.UsernameTaken != nil && errors.Is(err, deps.UsernameTaken) {
			return RegisterResult{Failure: RegisterFailureDuplicate, Err: err}
		}
		return RegisterResult{Failure: RegisterFailureCreate, Err: err}
	}
	return RegisterResult{User: user}
}

// ValidateUsername checks an already normalized username: length in runes and
// no whitespace or control characters.
func ValidateUsername(username string, min, max int) error {
	n := utf8.RuneCountInString(username)
	if n < min || n > max {
		return errors.New("username length out of range")
	}
	if strings.IndexFunc(username, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return errors.New("username contains whitespace or control characters")
	}
	return nil
}
