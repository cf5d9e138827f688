package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// StudentCursor is the opaque keyset cursor for student listings.
type StudentCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

func EncodeStudentCursor(createdAt time.Time, id string) (string, error) {
	b, err := json.Marshal(StudentCursor{CreatedAt: createdAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeStudentCursor(cursor string) (StudentCursor, error) {
	if cursor == "" {
		return StudentCursor{}, errors.New("empty cursor")
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return StudentCursor{}, err
	}

	var c StudentCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return StudentCursor{}, err
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return StudentCursor{}, errors.New("invalid cursor payload")
	}
	return c, nil
}
