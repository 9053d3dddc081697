package welldata

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"rae-agent/internal/models"
)

// Logical channel names used as snapshot keys
const (
	ChannelHookLoad         = "HookLoad"
	ChannelPumpPressure     = "PumpPressure"
	ChannelBlockHeight      = "BlockHeight"
	ChannelPumpSpm          = "PumpSpm"
	ChannelPumpSpm2         = "PumpSpm2"
	ChannelPumpSpm3         = "PumpSpm3"
	ChannelRotaryTorque     = "RotaryTorque"
	ChannelTopDrvRpm        = "TopDrvRpm"
	ChannelTopDrvTorque     = "TopDrvTorque"
	ChannelWeightOnBit      = "BitWeightQualified"
	ChannelBitPosition      = "BitPosition"
	ChannelBitStatus        = "BitStatus"
	ChannelFastRop          = "FastRopFtHr"
	ChannelSlipStatus       = "SlipStatus"
	ChannelTriggerHookLoad  = "TrigHkld"
	ChannelIadcRigActivity  = "IadcRigActivity"
	ChannelIadcRigActivity2 = "IadcRigActivity2"
	ChannelRigActivity      = "RigActivity"
)

// Mnemonics maps every recognized WITSML mnemonic to its logical channel.
// Attributes with any other mnemonic are never selected.
var Mnemonics = map[string]string{
	"HOOKLOAD_MAX":       ChannelHookLoad,
	"STP_PRS_1":          ChannelPumpPressure,
	"BLOCK_POS":          ChannelBlockHeight,
	"MP1_SPM":            ChannelPumpSpm,
	"MP2_SPM":            ChannelPumpSpm2,
	"MP3_SPM":            ChannelPumpSpm3,
	"ROT_TORQUE":         ChannelRotaryTorque,
	"TD_SPEED":           ChannelTopDrvRpm,
	"TD_TORQUE":          ChannelTopDrvTorque,
	"WOB":                ChannelWeightOnBit,
	"BIT_DEPTH":          ChannelBitPosition,
	"BIT_ON_BTM":         ChannelBitStatus,
	"FAST_ROP_FT_HR":     ChannelFastRop,
	"SLIPS_STAT":         ChannelSlipStatus,
	"Trigger Hkld":       ChannelTriggerHookLoad,
	"IADC_RIG_ACTIVITY":  ChannelIadcRigActivity,
	"IADC_RIG_ACTIVITY2": ChannelIadcRigActivity2,
	"IADC_RIG_ACTIVITY3": ChannelRigActivity,
}

type attributesResponse struct {
	Attributes []struct {
		ID      flexString `json:"id"`
		HasData bool       `json:"hasData"`
		Alias   struct {
			Mnemonic string `json:"witsml_mnemonic"`
		} `json:"alias"`
	} `json:"attributes"`
}

// Attributes lists every attribute configured on a job.
func (c *Client) Attributes(ctx context.Context, jobID string) ([]models.Attribute, error) {
	var resp attributesResponse
	if err := c.getJSON(ctx, jobPath(jobID, "/attributes"), nil, &resp); err != nil {
		return nil, err
	}

	attrs := make([]models.Attribute, 0, len(resp.Attributes))
	for _, a := range resp.Attributes {
		attrs = append(attrs, models.Attribute{
			ID:       string(a.ID),
			Mnemonic: a.Alias.Mnemonic,
			HasData:  a.HasData,
		})
	}
	return attrs, nil
}

// SelectChannels keeps attributes that carry data and have a recognized
// mnemonic, in the order the provider listed them.
func SelectChannels(attrs []models.Attribute) []models.ChannelSelection {
	var selections []models.ChannelSelection
	for _, a := range attrs {
		if !a.HasData {
			continue
		}
		if _, ok := Mnemonics[a.Mnemonic]; !ok {
			continue
		}
		selections = append(selections, models.ChannelSelection{
			AttributeID: a.ID,
			Mode:        models.ModeLast,
			Mnemonic:    a.Mnemonic,
		})
	}
	return selections
}

// ResolveChannels fetches a job's attributes and returns the selectable ones.
func (c *Client) ResolveChannels(ctx context.Context, jobID string) ([]models.ChannelSelection, error) {
	attrs, err := c.Attributes(ctx, jobID)
	if err != nil {
		return nil, err
	}
	selections := SelectChannels(attrs)
	c.logger.Debug("Resolved channels",
		zap.String("job_id", jobID),
		zap.Int("attributes", len(attrs)),
		zap.Int("selected", len(selections)),
	)
	return selections, nil
}

// RealTimeSupported reports whether the job advertises real-time data.
func (c *Client) RealTimeSupported(ctx context.Context, jobID string) (bool, error) {
	var caps []map[string]any
	if err := c.getJSON(ctx, jobPath(jobID, "/capabilities"), nil, &caps); err != nil {
		return false, err
	}
	if len(caps) == 0 {
		return false, nil
	}
	v, _ := caps[0]["realTime"].(string)
	return strings.EqualFold(v, "Supported"), nil
}
