package welldata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rae-agent/internal/models"
)

func TestFetchSnapshot(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/jobs/J1/data/time", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, false, body["isDifferential"])
		assert.Equal(t, float64(60), body["interval"])
		attrs := body["attributes"].([]any)
		require.Len(t, attrs, 2)
		assert.Equal(t, map[string]any{"id": "a1", "mode": "Last"}, attrs[0])

		fmt.Fprint(w, `{
			"attributes": [{"id": "a1"}, {"id": "p1"}],
			"timeRecords": [
				{"values": [[0, 25000.5], [0, 0]]},
				{"values": [[60, 1], [60, 1]]}
			]
		}`)
	})

	selections := []models.ChannelSelection{
		{AttributeID: "a1", Mode: models.ModeLast, Mnemonic: "HOOKLOAD_MAX"},
		{AttributeID: "p1", Mode: models.ModeLast, Mnemonic: "STP_PRS_1"},
	}
	from := time.Date(2024, 1, 10, 6, 5, 17, 0, time.UTC)

	data, err := f.client(t).FetchSnapshot(context.Background(), "J1", selections, from, from.Add(time.Minute), 60)
	require.NoError(t, err)

	assert.False(t, data.Empty())
	assert.Equal(t, models.Snapshot{"HookLoad": 25000.5, "PumpPressure": float64(0)}, data.Snapshot)
	assert.Contains(t, string(data.Raw), "timeRecords")
}

func TestFetchSnapshotWithoutRecords(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/jobs/J1/data/time", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"attributes": [{"id": "a1"}], "timeRecords": []}`)
	})

	data, err := f.client(t).FetchSnapshot(context.Background(), "J1", nil, time.Now(), time.Now(), 60)
	require.NoError(t, err)
	assert.True(t, data.Empty())
}

func TestBuildSnapshot(t *testing.T) {
	selections := []models.ChannelSelection{
		{AttributeID: "x9", Mnemonic: "SLIPS_STAT"},
	}
	values := [][]any{
		{0.0, 1.0},
		{0.0, "Drilling"},
		{0.0},
	}

	snap := BuildSnapshot([]string{"x9", "IadcRigActivity", "HookLoad", "extra"}, values, selections)

	assert.Equal(t, models.Snapshot{
		"SlipStatus":      1.0,
		"IadcRigActivity": "Drilling",
		"HookLoad":        nil,
	}, snap)
}
