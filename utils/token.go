package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Sessions are opaque tokens stored in Redis ("Token:<token>" -> username).
// The token value itself carries no claims.

func NewSessionToken() string {
	return uuid.NewString()
}

func SessionLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}
