package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/prusalink-bridge/internal/prusalink"
)

// Last will constants.
const (
	// willJob is the Job field the broker announces when the bridge vanishes.
	willJob = "Not printing"

	// willQoS is fixed at 1 so the will is delivered at least once.
	willQoS = 1
)

// BuildLastWill returns the message the broker publishes on
// job_progress_topic if the bridge disconnects uncleanly.
//
// It depends on the device info only, never on live job state.
func BuildLastWill(info *prusalink.Info) ([]byte, error) {
	if info == nil {
		return nil, fmt.Errorf("%w: no device info", ErrPrinterUnavailable)
	}

	data, err := json.Marshal(progress{
		Printer: info.Name,
		Job:     willJob,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling last will: %w", err)
	}
	return data, nil
}
