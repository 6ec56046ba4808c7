package token

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Record is the server-side metadata of an issued token.
// The raw token is only ever held by the recipient; stores key records by Fingerprint.
type Record struct {
	// Fingerprint is the BLAKE2b-256 of the raw token, hex encoded.
	Fingerprint string    `json:"fp" bson:"_id"`
	UID         string    `json:"uid" bson:"uid"`
	ExpiresAt   time.Time `json:"exp" bson:"exp"`
	// Origin is the URL the user asked for before logging in.
	Origin    string    `json:"origin,omitempty" bson:"origin,omitempty"`
	CreatedAt time.Time `json:"iat" bson:"iat"`
}

// NewRecord builds the record stored for token.
func NewRecord(token, uid string, ttl time.Duration, origin string, now time.Time) *Record {
	return &Record{
		Fingerprint: Fingerprint(token),
		UID:         uid,
		ExpiresAt:   now.Add(ttl),
		Origin:      origin,
		CreatedAt:   now,
	}
}

// Expired reports whether the record is no longer valid at now.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Matches reports whether the record may be presented by uid.
// An empty uid matches any owner.
func (r *Record) Matches(uid string) bool {
	return uid == "" || r.UID == uid
}

// Fingerprint returns the lookup key for a raw token.
func Fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
