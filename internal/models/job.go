package models

// Job is a WellData monitoring session for one well on one rig
type Job struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Contractor string `json:"contractor"` // asset owner
	RigName    string `json:"rig_name"`   // asset name
	Operator   string `json:"operator"`   // site owner
	Status     string `json:"status"`
}

// LookupKey is the "{contractor} {rig}" key rig filters are matched against.
func (j Job) LookupKey() string {
	return j.Contractor + " " + j.RigName
}

// Job status filters accepted by the jobs endpoint
const (
	JobStatusActive = "ActiveJobs"
	JobStatusEnded  = "EndedJobs"
	JobStatusAll    = "AllJobs"
)
