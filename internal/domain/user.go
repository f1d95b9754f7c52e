// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strconv"
	"strings"
)

var ErrUserIDInvalid = errors.New("user id invalid")

// UserID is the chat user id of a real player.
type UserID int64

func ParseUserID(raw string) (UserID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrUserIDInvalid
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrUserIDInvalid
	}
	return UserID(id), nil
}

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }
