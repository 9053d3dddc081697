package models

// ChannelStatus is the health code of a single channel. The workbook colors
// each code absolutely: 0 red, 2 amber, 3 green.
type ChannelStatus int

const (
	StatusMissing ChannelStatus = 0
	StatusWarn    ChannelStatus = 2
	StatusOK      ChannelStatus = 3
)

func (s ChannelStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarn:
		return "WARN"
	default:
		return "MISSING"
	}
}

// ModeLast asks the time endpoint for the most recent value in each interval
const ModeLast = "Last"

// Attribute is a channel declared on a job
type Attribute struct {
	ID       string `json:"id"`
	Mnemonic string `json:"mnemonic"`
	HasData  bool   `json:"has_data"`
}

// ChannelSelection is an attribute picked for the telemetry request
type ChannelSelection struct {
	AttributeID string `json:"id"`
	Mode        string `json:"mode"`
	Mnemonic    string `json:"-"`
}

// Snapshot maps a logical channel name (HookLoad, PumpPressure, ...) to the
// latest decoded JSON scalar: float64, bool, string or nil.
type Snapshot map[string]any

// ChannelReport is the fixed-order channel block of a well row.
type ChannelReport struct {
	IadcRigActivity  string
	IadcRigActivity2 string
	RigActivity      string

	HookLoad     ChannelStatus
	PumpPressure ChannelStatus
	BlockHeight  ChannelStatus
	PumpSpm      ChannelStatus
	PumpSpm2     ChannelStatus
	PumpSpm3     ChannelStatus
	RotaryTorque ChannelStatus
	TopDriveRPM  ChannelStatus
	TopDriveTorq ChannelStatus
	WeightOnBit  ChannelStatus
	FastRop      ChannelStatus
	TriggerHkld  ChannelStatus
	BitPosition  ChannelStatus

	// BitStatus and SlipStatus hold display text, or the MISSING code as text.
	BitStatus  string
	SlipStatus string
}

// MissingText is how a missing enumerated channel is rendered.
const MissingText = "0"

// DefaultChannelReport has every channel at its MISSING default.
func DefaultChannelReport() ChannelReport {
	return ChannelReport{
		BitStatus:  MissingText,
		SlipStatus: MissingText,
	}
}

// Statuses returns the numeric status columns in display order.
func (c ChannelReport) Statuses() []ChannelStatus {
	return []ChannelStatus{
		c.HookLoad, c.PumpPressure, c.BlockHeight, c.PumpSpm, c.PumpSpm2, c.PumpSpm3,
		c.RotaryTorque, c.TopDriveRPM, c.TopDriveTorq, c.WeightOnBit, c.FastRop,
		c.TriggerHkld, c.BitPosition,
	}
}
