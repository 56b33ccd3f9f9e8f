package domain

import "time"

// CooldownKey identifies one rate-limit window: a normalized identity
// (phone or email) paired with the requesting origin address.
type CooldownKey struct {
	Identity string `bson:"identity" json:"identity"`
	Origin   string `bson:"origin" json:"origin"`
}

// CooldownRecord gates verification-code issuance for one key. Records
// auto-expire via a TTL index, but a record whose ExpiresAt has passed must
// be treated as absent even before the physical sweep.
type CooldownRecord struct {
	Identity  string    `bson:"identity" json:"identity"`
	Origin    string    `bson:"origin" json:"origin"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}

// ActiveAt reports whether the cooldown is still in force at the given
// instant (lazy expiry semantics).
func (r *CooldownRecord) ActiveAt(now time.Time) bool {
	return r != nil && r.ExpiresAt.After(now)
}
