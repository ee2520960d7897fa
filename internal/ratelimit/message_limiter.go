package ratelimit

// MessageLimiter enforces a per-connection inbound message budget.
//
// A rate of <= 0 disables the limit entirely, which keeps the caller free of
// configuration special cases.
type MessageLimiter struct {
	bucket *TokenBucket
}

func NewMessageLimiter(clock Clock, messagesPerSecond int) *MessageLimiter {
	if messagesPerSecond <= 0 {
		return &MessageLimiter{}
	}
	rate := int64(messagesPerSecond)
	return &MessageLimiter{
		bucket: NewTokenBucket(clock, rate, rate),
	}
}

// AllowMessage reports whether one more inbound message fits the budget.
func (l *MessageLimiter) AllowMessage() bool {
	if l == nil || l.bucket == nil {
		return true
	}
	return l.bucket.Allow(1)
}
