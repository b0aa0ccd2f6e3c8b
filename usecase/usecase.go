package usecase

import (
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"salvage-market/model"
	"salvage-market/pkg/clock"
)

func newID() string {
	return ulid.Make().String()
}

// stamp is the store's notion of now: UTC, whole seconds.
func stamp(c clock.Clock) time.Time {
	return c.Now().UTC().Truncate(time.Second)
}

// Column widths shared by several tables.
const (
	maxUserIDLen = 64
	maxNameLen   = 255
	maxRefLen    = 512
	maxNotesLen  = 4000
)

func requireActor(actor model.Actor) error {
	if !actor.Authenticated() {
		return model.Unauthorized("sign in required")
	}
	if tooLong(actor.UserID, maxUserIDLen) {
		return model.Invalid("user_id", "is too long")
	}
	return nil
}

// tooLong counts characters, which is how VARCHAR widths are measured.
func tooLong(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}

// clip shortens s to at most max characters.
func clip(s string, max int) string {
	if !tooLong(s, max) {
		return s
	}
	return string([]rune(s)[:max])
}
