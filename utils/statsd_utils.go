package utils

import (
	"os"

	"github.com/DataDog/datadog-go/statsd"
	. "github.com/Luismorlan/insighthub/utils/log"
)

// NewDogStatsdClient connects to the agent at DD_AGENT_ADDR, falling back to
// a no-op client when the address is unset or the client can't be built.
func NewDogStatsdClient() statsd.ClientInterface {
	addr := os.Getenv("DD_AGENT_ADDR")
	if addr == "" {
		return &statsd.NoOpClient{}
	}
	client, err := statsd.New(addr)
	if err != nil {
		Log.Errorf("fail to create statsd client for %s: %v", addr, err)
		return &statsd.NoOpClient{}
	}
	return client
}
