package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// Connect dials the NATS server configured through the NATS_URL environment
// variable, falling back to the default URL when unset.
func Connect() (*nats.Conn, error) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	return nats.Connect(url)
}
