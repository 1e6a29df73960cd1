package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TestCredentials generates unique test credentials using a timestamp
func TestCredentials(suffix string) (id, email, password string) {
	id = uuid.New().String()
	email = fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
	password = "TestPassword123!"
	return
}
