package welldata

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"rae-agent/internal/models"
	"rae-agent/shared/config"
	"rae-agent/shared/retry"
)

type jobsPage struct {
	Jobs  []jobWire `json:"jobs"`
	Total int       `json:"total"`
}

type jobWire struct {
	ID            flexString `json:"id"`
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	AssetInfoList []struct {
		Owner string `json:"owner"`
		Name  string `json:"name"`
	} `json:"assetInfoList"`
	SiteInfoList []struct {
		Owner string `json:"owner"`
	} `json:"siteInfoList"`
}

func (w jobWire) model() models.Job {
	job := models.Job{
		ID:     string(w.ID),
		Name:   w.Name,
		Status: w.Status,
	}
	if len(w.AssetInfoList) > 0 {
		job.Contractor = w.AssetInfoList[0].Owner
		job.RigName = w.AssetInfoList[0].Name
	}
	if len(w.SiteInfoList) > 0 {
		job.Operator = w.SiteInfoList[0].Owner
	}
	return job
}

// ListJobs pages through /jobs in provider order. The outer retry budget
// wraps each page request.
func (c *Client) ListJobs(ctx context.Context, status string, take, maxPages int) ([]models.Job, error) {
	if take <= 0 {
		take = 1000
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	var jobs []models.Job
	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("jobStatus", status)
		query.Set("includeCapabilities", "false")
		query.Set("sort", "id asc")
		query.Set("take", strconv.Itoa(take))
		query.Set("skip", strconv.Itoa(page*take))
		query.Set("total", "true")

		resp, err := retry.Value(ctx, c.outer, func() (jobsPage, error) {
			var p jobsPage
			err := c.getJSON(ctx, "/jobs", query, &p)
			return p, err
		})
		if err != nil {
			return nil, err
		}

		for _, w := range resp.Jobs {
			jobs = append(jobs, w.model())
		}

		c.logger.Debug("Fetched jobs page",
			zap.Int("page", page),
			zap.Int("returned", len(resp.Jobs)),
			zap.Int("total", resp.Total),
		)

		if len(resp.Jobs) < take || (resp.Total > 0 && len(jobs) >= resp.Total) {
			break
		}
	}

	c.logger.Info("Listed jobs", zap.Int("count", len(jobs)), zap.String("status", status))
	return jobs, nil
}

// JobLookup maps "{contractor} {rig}" keys to job ids in first-seen order.
// A repeated key keeps its position and takes the later id.
type JobLookup struct {
	keys []string
	ids  map[string]string
}

func NewJobLookup(jobs []models.Job) *JobLookup {
	l := &JobLookup{ids: make(map[string]string, len(jobs))}
	for _, job := range jobs {
		key := job.LookupKey()
		if _, ok := l.ids[key]; !ok {
			l.keys = append(l.keys, key)
		}
		l.ids[key] = job.ID
	}
	return l
}

// MatchSubstrings returns, for each token in order, the id of every key that
// contains it. A job matched by several tokens is listed once per token.
func (l *JobLookup) MatchSubstrings(tokens []string) (ids []string, unmatched []string) {
	for _, token := range tokens {
		found := false
		for _, key := range l.keys {
			if strings.Contains(key, token) {
				ids = append(ids, l.ids[key])
				found = true
			}
		}
		if !found {
			unmatched = append(unmatched, token)
		}
	}
	return ids, unmatched
}

// Selection is the outcome of applying the configured job filters
type Selection struct {
	Jobs []models.Job
	// NotFound lists configured filter values that matched no job
	NotFound []string
	Mode     string
}

const (
	SelectByRigSubstring = "rig-substring"
	SelectByParty        = "contractor-operator"
	SelectByRigNumber    = "rig-number"
	SelectAll            = "all"
)

// SelectJobs applies the first configured selection mode: rig substrings,
// then contractor/operator, then exact rig names, otherwise every job.
func SelectJobs(jobs []models.Job, cfg config.RAEConfig) Selection {
	byID := make(map[string]models.Job, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
	}

	switch {
	case len(cfg.Rigs) > 0:
		ids, unmatched := NewJobLookup(jobs).MatchSubstrings(cfg.Rigs)
		sel := Selection{Mode: SelectByRigSubstring, NotFound: unmatched}
		for _, id := range ids {
			sel.Jobs = append(sel.Jobs, byID[id])
		}
		return sel

	case len(cfg.Contractors) > 0 || len(cfg.Operators) > 0:
		sel := Selection{Mode: SelectByParty}
		for _, job := range jobs {
			if len(cfg.Contractors) > 0 && !slices.Contains(cfg.Contractors, job.Contractor) {
				continue
			}
			if len(cfg.Operators) > 0 && !slices.Contains(cfg.Operators, job.Operator) {
				continue
			}
			sel.Jobs = append(sel.Jobs, job)
		}
		return sel

	case len(cfg.RigNumbers) > 0:
		sel := Selection{Mode: SelectByRigNumber}
		seen := make(map[string]bool)
		for _, job := range jobs {
			if slices.Contains(cfg.RigNumbers, job.RigName) {
				sel.Jobs = append(sel.Jobs, job)
				seen[job.RigName] = true
			}
		}
		for _, rig := range cfg.RigNumbers {
			if !seen[rig] {
				sel.NotFound = append(sel.NotFound, rig)
			}
		}
		return sel

	default:
		return Selection{Mode: SelectAll, Jobs: jobs}
	}
}
