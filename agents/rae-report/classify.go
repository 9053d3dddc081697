package raereport

import (
	"encoding/json"
	"strconv"

	"rae-agent/agents/rae-report/welldata"
	"rae-agent/internal/models"
)

type channelRule func(r *models.ChannelReport, v any)

// channelRules maps each logical channel to how its snapshot value is folded
// into the row. Channels without a value in the snapshot keep their default.
var channelRules = map[string]channelRule{
	welldata.ChannelHookLoad:        presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.HookLoad }),
	welldata.ChannelPumpPressure:    presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.PumpPressure }),
	welldata.ChannelBlockHeight:     presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.BlockHeight }),
	welldata.ChannelPumpSpm:         presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.PumpSpm }),
	welldata.ChannelPumpSpm2:        presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.PumpSpm2 }),
	welldata.ChannelPumpSpm3:        presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.PumpSpm3 }),
	welldata.ChannelRotaryTorque:    presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.RotaryTorque }),
	welldata.ChannelTopDrvRpm:       presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.TopDriveRPM }),
	welldata.ChannelTopDrvTorque:    presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.TopDriveTorq }),
	welldata.ChannelWeightOnBit:     presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.WeightOnBit }),
	welldata.ChannelBitPosition:     presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.BitPosition }),
	welldata.ChannelFastRop:         presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.FastRop }),
	welldata.ChannelTriggerHookLoad: presence(func(r *models.ChannelReport) *models.ChannelStatus { return &r.TriggerHkld }),

	welldata.ChannelBitStatus:  func(r *models.ChannelReport, v any) { r.BitStatus = BitStatusText(v) },
	welldata.ChannelSlipStatus: func(r *models.ChannelReport, v any) { r.SlipStatus = SlipStatusText(v) },

	welldata.ChannelIadcRigActivity:  func(r *models.ChannelReport, v any) { r.IadcRigActivity = displayText(v) },
	welldata.ChannelIadcRigActivity2: func(r *models.ChannelReport, v any) { r.IadcRigActivity2 = displayText(v) },
	welldata.ChannelRigActivity:      func(r *models.ChannelReport, v any) { r.RigActivity = displayText(v) },
}

func presence(field func(*models.ChannelReport) *models.ChannelStatus) channelRule {
	return func(r *models.ChannelReport, v any) {
		*field(r) = PresenceStatus(v)
	}
}

// Classify folds a snapshot into the fixed-order channel block of a row.
func Classify(snap models.Snapshot) models.ChannelReport {
	report := models.DefaultChannelReport()
	for name, v := range snap {
		if rule, ok := channelRules[name]; ok {
			rule(&report, v)
		}
	}
	return report
}

// PresenceStatus is OK for a positive number, WARN for zero and MISSING for
// anything else, including non-numeric values.
func PresenceStatus(v any) models.ChannelStatus {
	f, ok := number(v)
	switch {
	case !ok:
		return models.StatusMissing
	case f > 0:
		return models.StatusOK
	case f == 0:
		return models.StatusWarn
	default:
		return models.StatusMissing
	}
}

var (
	bitStatusText  = map[float64]string{0: "On", 1: "Off"}
	slipStatusText = map[float64]string{0: "Resetting", 1: "in", 2: "out"}
)

// BitStatusText maps the bit-on-bottom flag to display text.
func BitStatusText(v any) string { return enumText(bitStatusText, v) }

// SlipStatusText maps the slips state to display text.
func SlipStatusText(v any) string { return enumText(slipStatusText, v) }

func enumText(table map[float64]string, v any) string {
	if f, ok := number(v); ok {
		if text, ok := table[f]; ok {
			return text
		}
	}
	return models.MissingText
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// displayText renders an IADC value verbatim. Numbers lose trailing zeros
// and nil becomes empty.
func displayText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
