package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(clientIP string) string {
	return fmt.Sprintf("ratelimit:%s", clientIP)
}

func PlaylistKey(bookID string) string {
	return fmt.Sprintf("playlist:%s", bookID)
}
