package refresher

// backoffCapHours bounds the failure backoff so a flapping account is retried
// at least daily.
const backoffCapHours = 24

// BackoffHours returns the hours until the next attempt after failCount
// consecutive failures: 1, 2, 4, 8, 16, then capped at 24.
func BackoffHours(failCount int) int {
	if failCount <= 1 {
		return 1
	}
	if failCount > 6 {
		return backoffCapHours
	}
	h := 1 << (failCount - 1)
	if h > backoffCapHours {
		return backoffCapHours
	}
	return h
}
