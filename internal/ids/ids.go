package ids

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// New returns "<prefix>_<unix millis>_<9 random chars>".
func New(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), gonanoid.MustGenerate(alphabet, 9))
}

func MessageID() string {
	return New("msg")
}

// DeliveryID is the provider-side id handed back by stub senders.
func DeliveryID(channel string) string {
	return New(channel)
}
