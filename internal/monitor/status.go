package monitor

import (
	"bytes"
	"strconv"

	json "github.com/goccy/go-json"
)

// ServiceStatus is the outcome of one service check.
type ServiceStatus struct {
	Key       string
	Name      string
	Reachable bool
	Version   string
	// Issues reported by a reachable service, or the reason an unreachable one could not be checked.
	Issues []string
}

// SABnzbdStatus adds the queue fields the remediation rules look at.
type SABnzbdStatus struct {
	ServiceStatus
	Paused      bool
	QueueStatus string
	QueueCount  int
	DiskSpaceGB float64
	DiskSpaceOK bool
}

// flexNumber decodes a JSON number or a numeric string. SABnzbd reports most queue counters as
// strings. Anything else ("N/A", objects) decodes without error and is marked invalid; null, a
// missing field and "" read as 0.
type flexNumber struct {
	value   float64
	invalid bool
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	*n = flexNumber{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			n.invalid = true
			return nil
		}
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			n.invalid = true
			return nil
		}
		n.value = f
		return nil
	}
	if err := json.Unmarshal(data, &n.value); err != nil {
		*n = flexNumber{invalid: true}
	}
	return nil
}

func (n flexNumber) Valid() bool {
	return !n.invalid
}
