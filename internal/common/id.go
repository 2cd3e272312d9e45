package common

import (
	"github.com/google/uuid"
)

// NewCorrelationID generates an id for a request or sweep: "sweep_<uuid>"
func NewCorrelationID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
