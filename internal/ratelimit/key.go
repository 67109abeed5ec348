package ratelimit

import "fmt"

// KeyForAccount builds a limiter key for one account and action.
// An empty action yields a key shared by every action of the account.
func KeyForAccount(accountID uint64, action string) string {
	if accountID == 0 {
		return ""
	}
	if action == "" {
		return fmt.Sprintf("a:%d", accountID)
	}
	return fmt.Sprintf("a:%d:%s", accountID, action)
}
