package cache

import "time"

// Key namespaces. Each supports point deletion; access keys are also deleted
// in bulk per owner when the owner's status changes.
const (
	accessPrefix    = "access:"
	accessGenPrefix = "access-gen:"
	userURLsPrefix  = "user-urls:"
	userStatePrefix = "user-state:"
	userGenPrefix   = "user-state-gen:"
)

const (
	AccessTTL    = 24 * time.Hour
	AccessGenTTL = AccessTTL
	UserURLsTTL  = 60 * time.Second
	UserStateTTL = 24 * time.Hour
	UserGenTTL   = UserStateTTL
)

// AccessKey is the key of the access decision for a short code
func AccessKey(shortCode string) string {
	return accessPrefix + shortCode
}

// AccessKeys maps short codes to access keys
func AccessKeys(shortCodes ...string) []string {
	keys := make([]string, len(shortCodes))
	for i, code := range shortCodes {
		keys[i] = AccessKey(code)
	}
	return keys
}

// AccessGenKey is the key of the generation counter of a short code. Every
// invalidation bumps it; a decision computed under an older generation is
// not written back.
func AccessGenKey(shortCode string) string {
	return accessGenPrefix + shortCode
}

// UserURLsKey is the key of a user's URL list
func UserURLsKey(userID string) string {
	return userURLsPrefix + userID
}

// UserStateKey is the key of a user's cached status and role
func UserStateKey(userID string) string {
	return userStatePrefix + userID
}

// UserStateGenKey is the generation counter guarding UserStateKey
func UserStateGenKey(userID string) string {
	return userGenPrefix + userID
}
