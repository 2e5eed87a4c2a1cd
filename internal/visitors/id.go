package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DerivedVisitorID builds a visitor identifier for clients that did not send
// one. The value rotates daily at midnight UTC and never contains the
// address itself.
func DerivedVisitorID(pageID uint, ipAddress, userAgent, salt string, now time.Time) string {
	day := now.UTC().Format("2006-01-02")
	data := fmt.Sprintf("%s-%s.%d.%s.%s", day, salt, pageID, ipAddress, userAgent)

	hash := sha256.Sum256([]byte(data))
	return "srv_" + hex.EncodeToString(hash[:16])
}
