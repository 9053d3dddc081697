package welldata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rae-agent/internal/models"
	"rae-agent/shared/config"
	"rae-agent/shared/retry"
)

func jobJSON(id int, contractor, rig, operator string) string {
	return fmt.Sprintf(`{"id": %d, "name": "Well %d", "assetInfoList": [{"owner": %q, "name": %q}], "siteInfoList": [{"owner": %q}]}`,
		id, id, contractor, rig, operator)
}

func TestListJobsPaginates(t *testing.T) {
	f := newFakeAPI(t)
	all := []string{
		jobJSON(1, "H&P", "101", "Devon"),
		jobJSON(2, "Nabors", "X12", "Oxy"),
		jobJSON(3, "H&P", "202", "EOG"),
	}
	var skips []int
	f.handle("/jobs", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, models.JobStatusActive, q.Get("jobStatus"))
		assert.Equal(t, "id asc", q.Get("sort"))
		take, _ := strconv.Atoi(q.Get("take"))
		skip, _ := strconv.Atoi(q.Get("skip"))
		skips = append(skips, skip)

		end := min(skip+take, len(all))
		page := ""
		for i := skip; i < end; i++ {
			if page != "" {
				page += ","
			}
			page += all[i]
		}
		fmt.Fprintf(w, `{"jobs": [%s], "total": %d}`, page, len(all))
	})

	jobs, err := f.client(t).ListJobs(context.Background(), models.JobStatusActive, 2, 10)
	require.NoError(t, err)

	require.Len(t, jobs, 3)
	assert.Equal(t, []int{0, 2}, skips)
	assert.Equal(t, models.Job{ID: "1", Name: "Well 1", Contractor: "H&P", RigName: "101", Operator: "Devon"}, jobs[0])
	assert.Equal(t, "Nabors X12", jobs[1].LookupKey())
}

func TestListJobsStopsAtMaxPages(t *testing.T) {
	f := newFakeAPI(t)
	calls := 0
	f.handle("/jobs", func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"jobs": [%s], "total": 0}`, jobJSON(calls, "C", "R", "O"))
	})

	jobs, err := f.client(t).ListJobs(context.Background(), models.JobStatusActive, 1, 3)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
	assert.Equal(t, 3, calls)
}

func TestListJobsOuterRetryExhausted(t *testing.T) {
	f := newFakeAPI(t)
	var calls atomic.Int32
	f.handle("/jobs", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	jobs, err := f.client(t).ListJobs(context.Background(), models.JobStatusActive, 10, 1)

	require.Error(t, err)
	assert.Nil(t, jobs)
	assert.ErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Equal(t, int32(8), calls.Load(), "4 outer attempts of 2 inline tries each")
}

func TestListJobsOuterRetryRecovers(t *testing.T) {
	f := newFakeAPI(t)
	var calls atomic.Int32
	f.handle("/jobs", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 4 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"jobs": [%s], "total": 1}`, jobJSON(7, "H&P", "101", "Devon"))
	})

	jobs, err := f.client(t).ListJobs(context.Background(), models.JobStatusActive, 10, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "7", jobs[0].ID)
	assert.Equal(t, int32(5), calls.Load())
}

func TestJobLookupLastWriteWins(t *testing.T) {
	l := NewJobLookup([]models.Job{
		{ID: "1", Contractor: "H&P", RigName: "101"},
		{ID: "2", Contractor: "Nabors", RigName: "X12"},
		{ID: "3", Contractor: "H&P", RigName: "101"},
	})

	assert.Equal(t, []string{"H&P 101", "Nabors X12"}, l.keys)
	ids, unmatched := l.MatchSubstrings([]string{"H&P 101"})
	assert.Equal(t, []string{"3"}, ids)
	assert.Empty(t, unmatched)
}

func TestMatchSubstringsDoesNotDeduplicate(t *testing.T) {
	l := NewJobLookup([]models.Job{
		{ID: "1", Contractor: "H&P", RigName: "101"},
		{ID: "2", Contractor: "H&P", RigName: "1010"},
		{ID: "3", Contractor: "Nabors", RigName: "X12"},
	})

	ids, unmatched := l.MatchSubstrings([]string{"101", "H&P 1010", "Patterson 9"})
	assert.Equal(t, []string{"1", "2", "2"}, ids)
	assert.Equal(t, []string{"Patterson 9"}, unmatched)
}

func TestSelectJobs(t *testing.T) {
	jobs := []models.Job{
		{ID: "1", Contractor: "H&P", RigName: "101", Operator: "Devon"},
		{ID: "2", Contractor: "Nabors", RigName: "X12", Operator: "Oxy"},
		{ID: "3", Contractor: "H&P", RigName: "202", Operator: "Oxy"},
	}

	tests := []struct {
		name         string
		cfg          config.RAEConfig
		wantMode     string
		wantIDs      []string
		wantNotFound []string
	}{
		{
			name:     "rigs take precedence",
			cfg:      config.RAEConfig{Rigs: []string{"H&P"}, Contractors: []string{"Nabors"}},
			wantMode: SelectByRigSubstring,
			wantIDs:  []string{"1", "3"},
		},
		{
			name:     "contractor and operator",
			cfg:      config.RAEConfig{Contractors: []string{"H&P"}, Operators: []string{"Oxy"}},
			wantMode: SelectByParty,
			wantIDs:  []string{"3"},
		},
		{
			name:     "operator only",
			cfg:      config.RAEConfig{Operators: []string{"Oxy"}},
			wantMode: SelectByParty,
			wantIDs:  []string{"2", "3"},
		},
		{
			name:         "rig numbers",
			cfg:          config.RAEConfig{RigNumbers: []string{"X12", "999"}},
			wantMode:     SelectByRigNumber,
			wantIDs:      []string{"2"},
			wantNotFound: []string{"999"},
		},
		{
			name:     "everything",
			wantMode: SelectAll,
			wantIDs:  []string{"1", "2", "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := SelectJobs(jobs, tt.cfg)
			assert.Equal(t, tt.wantMode, sel.Mode)

			var ids []string
			for _, job := range sel.Jobs {
				ids = append(ids, job.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantNotFound, sel.NotFound)
		})
	}
}
