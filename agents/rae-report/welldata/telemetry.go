package welldata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"rae-agent/internal/models"
)

// TimeRequest is the body of the historical time-data endpoint
type TimeRequest struct {
	Attributes     []models.ChannelSelection `json:"attributes"`
	FromTime       string                    `json:"fromTime"`
	ToTime         string                    `json:"toTime"`
	Interval       float64                   `json:"interval"`
	IsDifferential bool                      `json:"isDifferential"`
}

type timeResponse struct {
	Attributes []struct {
		ID flexString `json:"id"`
	} `json:"attributes"`
	TimeRecords []struct {
		Values [][]any `json:"values"`
	} `json:"timeRecords"`
}

// TimeData is the decoded snapshot together with the raw response body
type TimeData struct {
	Snapshot models.Snapshot
	Raw      json.RawMessage
}

// Empty reports whether the provider returned no time records
func (d TimeData) Empty() bool { return d.Snapshot == nil }

// FetchSnapshot requests the selected channels over [from, to] and keeps only
// the first time record. A response without time records yields an empty
// TimeData.
func (c *Client) FetchSnapshot(ctx context.Context, jobID string, selections []models.ChannelSelection, from, to time.Time, interval float64) (TimeData, error) {
	req := TimeRequest{
		Attributes: selections,
		FromTime:   from.Format(time.RFC3339),
		ToTime:     to.Format(time.RFC3339),
		Interval:   interval,
	}

	data, err := c.do(ctx, http.MethodPost, jobPath(jobID, "/data/time"), nil, req)
	if err != nil {
		return TimeData{}, err
	}

	var resp timeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return TimeData{}, fmt.Errorf("%w: decode time data: %w", ErrRequestFailed, err)
	}

	out := TimeData{Raw: json.RawMessage(data)}
	if len(resp.TimeRecords) == 0 {
		c.logger.Info("No time records returned", zap.String("job_id", jobID))
		return out, nil
	}

	ids := make([]string, len(resp.Attributes))
	for i, a := range resp.Attributes {
		ids[i] = string(a.ID)
	}
	out.Snapshot = BuildSnapshot(ids, resp.TimeRecords[0].Values, selections)
	return out, nil
}

// BuildSnapshot pairs attribute ids with record values by position and keys
// each value by its logical channel. Each value entry is [offset, value].
func BuildSnapshot(ids []string, values [][]any, selections []models.ChannelSelection) models.Snapshot {
	logical := make(map[string]string, len(selections))
	for _, s := range selections {
		if name, ok := Mnemonics[s.Mnemonic]; ok {
			logical[s.AttributeID] = name
		}
	}

	snap := make(models.Snapshot, len(ids))
	for i, id := range ids {
		if i >= len(values) {
			break
		}
		name, ok := logical[id]
		if !ok {
			name = id
		}
		var v any
		if len(values[i]) > 1 {
			v = values[i][1]
		}
		snap[name] = v
	}
	return snap
}
