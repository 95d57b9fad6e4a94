package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

// Response is the HTTP rendering of an engine error.
type Response struct {
	Status  int
	Message string
	// RetryAfter is the Retry-After header value, empty when not applicable.
	RetryAfter string
}

// Describe maps err to a status and client-safe message. Invalid input keeps
// the engine's detail; every other message is fixed text.
func Describe(err error) Response {
	kind := goGuard.KindOf(err)
	r := Response{Status: http.StatusInternalServerError, Message: "internal error"}

	switch kind {
	case goGuard.KindInvalidCredentials:
		r = Response{Status: http.StatusUnauthorized, Message: "invalid credentials"}
	case goGuard.KindInvalidToken:
		r = Response{Status: http.StatusUnauthorized, Message: "invalid token"}
	case goGuard.KindExpiredToken:
		r = Response{Status: http.StatusUnauthorized, Message: "token expired"}
	case goGuard.KindWrongTokenType:
		r = Response{Status: http.StatusUnauthorized, Message: "wrong token type"}
	case goGuard.KindRevokedOrUnknown:
		r = Response{Status: http.StatusUnauthorized, Message: "refresh token revoked or unknown"}
	case goGuard.KindUserNotFound:
		r = Response{Status: http.StatusUnauthorized, Message: "user not found"}
	case goGuard.KindForbidden:
		r = Response{Status: http.StatusForbidden, Message: "forbidden"}
	case goGuard.KindLocked:
		r = Response{Status: http.StatusTooManyRequests, Message: "Too many login attempts. Try again later."}
	case goGuard.KindRateLimited:
		r = Response{Status: http.StatusTooManyRequests, Message: "rate limit exceeded"}
		var rl *goGuard.RateLimitError
		if errors.As(err, &rl) {
			r.Message = fmt.Sprintf("Rate limit exceeded: %d/%ds", rl.Limit, int64(rl.Window/time.Second))
		}
	case goGuard.KindUsernameTaken:
		r = Response{Status: http.StatusBadRequest, Message: "username already exists"}
	case goGuard.KindInvalidInput:
		r = Response{Status: http.StatusBadRequest, Message: err.Error()}
	case goGuard.KindStoreUnavailable:
		r = Response{Status: http.StatusServiceUnavailable, Message: "service unavailable"}
	}

	if wait, ok := goGuard.RetryAfter(err); ok {
		r.RetryAfter = RetryAfterSeconds(wait)
	}
	return r
}

// RetryAfterSeconds rounds up and never advertises less than one second.
func RetryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// WriteError renders err as JSON using Describe.
func WriteError(w http.ResponseWriter, err error) {
	r := Describe(err)
	if r.RetryAfter != "" {
		w.Header().Set("Retry-After", r.RetryAfter)
	}
	WriteMessage(w, r.Status, r.Message)
}

func WriteMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
