package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardnew/samdma/dmac"
	"github.com/ardnew/samdma/dmac/hal"
	"github.com/ardnew/samdma/dmac/hal/sim"
	"github.com/ardnew/samdma/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samd51Profile = `
family: samd51
channels: 4
enable: true
debug_run: true
levels:
  - level: level0
    enabled: true
    round_robin: true
    qos: critical
  - level: lvl2
    enabled: true
channel:
  - id: 0
    priority: level0
    source: 0x05
    action: burst
    burst_length: 4beat
    threshold: 2beat
    interrupts: terr|tcmpl
  - id: 3
    priority: level2
    source: software
    action: transaction
    run_standby: true
    interrupts: none
`

const samd21Profile = `
family: samd21
channels: 2
enable: true
levels:
  - level: level1
    enabled: true
bus_qos:
  data: critical
  fetch: low
channel:
  - id: 1
    priority: level1
    source: 2
    action: beat
    interrupts: tcmpl
`

func TestParse_SAMD51(t *testing.T) {
	c, err := Parse([]byte(samd51Profile))
	require.NoError(t, err)

	assert.Equal(t, "samd51", c.Family)
	assert.Equal(t, 4, c.Channels)
	require.Len(t, c.Levels, 2)
	assert.Equal(t, dmac.PriorityLevel2, c.Levels[1].Level)
	require.NotNil(t, c.Levels[0].QoS)
	assert.Equal(t, dmac.QoSCritical, *c.Levels[0].QoS)
	assert.Nil(t, c.Levels[1].QoS)

	require.Len(t, c.Channel, 2)
	ch := c.Channel[0]
	assert.Equal(t, dmac.TriggerSAMD5xSercom0Tx, ch.Source)
	assert.Equal(t, dmac.TriggerBurst, ch.Action)
	require.NotNil(t, ch.BurstLength)
	assert.Equal(t, dmac.Burst4Beats, *ch.BurstLength)
	require.NotNil(t, ch.Threshold)
	assert.Equal(t, dmac.Threshold2Beats, *ch.Threshold)
	assert.Equal(t, dmac.InterruptTransferError|dmac.InterruptTransferComplete, ch.Interrupts)

	assert.Equal(t, dmac.TriggerSoftware, c.Channel[1].Source)
	assert.Equal(t, dmac.InterruptNone, c.Channel[1].Interrupts)
	assert.True(t, c.Channel[1].RunStandby)
}

func TestParse_SAMD21(t *testing.T) {
	c, err := Parse([]byte(samd21Profile))
	require.NoError(t, err)

	assert.Equal(t, map[dmac.BusTarget]dmac.QoS{
		dmac.BusData:  dmac.QoSCritical,
		dmac.BusFetch: dmac.QoSLow,
	}, c.BusQoS)
	assert.Equal(t, dmac.TriggerSAMD21Sercom0Tx, c.Channel[0].Source)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		want    string
	}{
		{"empty", ``, "empty"},
		{"unknown key", "family: samd51\nchannels: 1\nspeed: 3\n", "speed"},
		{"unknown family", "family: sam3x\nchannels: 1\n", "sam3x"},
		{"no channels", "family: samd51\nchannels: 0\n", "channels 0"},
		{"too many channels", "family: samd21\nchannels: 13\n", "channels 13"},
		{"bad level", "family: samd51\nchannels: 1\nlevels:\n  - level: level4\n", "level4"},
		{"duplicate level", "family: samd51\nchannels: 1\nlevels:\n  - level: level1\n  - level: lvl1\n", "twice"},
		{"level qos on samd21", "family: samd21\nchannels: 1\nlevels:\n  - level: level0\n    qos: low\n", "level qos"},
		{"bus qos on samd51", "family: samd51\nchannels: 1\nbus_qos:\n  data: low\n", "bus qos"},
		{"channel out of range", "family: samd51\nchannels: 2\nchannel:\n  - id: 2\n", "channel 2"},
		{"duplicate channel", "family: samd51\nchannels: 2\nchannel:\n  - id: 1\n  - id: 1\n", "twice"},
		{"wide source on samd21", "family: samd21\nchannels: 1\nchannel:\n  - id: 0\n    source: 0x44\n", "wider"},
		{"burst on samd21", "family: samd21\nchannels: 1\nchannel:\n  - id: 0\n    burst_length: 2beat\n", "burst length"},
		{"threshold on samd21", "family: samd21\nchannels: 1\nchannel:\n  - id: 0\n    threshold: 1beat\n", "threshold"},
		{"bad interrupts", "family: samd51\nchannels: 1\nchannel:\n  - id: 0\n    interrupts: terr|bogus\n", "bogus"},
		{"source out of range", "family: samd51\nchannels: 1\nchannel:\n  - id: 0\n    source: 0x80\n", "0x80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.profile))
			require.Error(t, err)
			assert.ErrorIs(t, err, pkg.ErrInvalidProfile)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuild_SAMD51(t *testing.T) {
	c, err := Parse([]byte(samd51Profile))
	require.NoError(t, err)

	bus := sim.New(hal.SAMD5x)
	ctrl, err := c.Build(bus)
	require.NoError(t, err)

	assert.Equal(t, 4, ctrl.NumChannels())
	assert.True(t, ctrl.IsEnabled())
	assert.True(t, ctrl.DebugRun())
	assert.True(t, ctrl.PriorityLevelEnabled(dmac.PriorityLevel0))
	assert.False(t, ctrl.PriorityLevelEnabled(dmac.PriorityLevel1))
	assert.True(t, ctrl.PriorityLevelEnabled(dmac.PriorityLevel2))
	assert.True(t, ctrl.RoundRobin(dmac.PriorityLevel0))
	assert.False(t, ctrl.RoundRobin(dmac.PriorityLevel2))
	q, err := ctrl.LevelQoS(dmac.PriorityLevel0)
	require.NoError(t, err)
	assert.Equal(t, dmac.QoSCritical, q)

	chans, err := c.TakeChannels(ctrl)
	require.NoError(t, err)
	require.Len(t, chans, 2)
	assert.Equal(t, dmac.ChannelsOf(1, 2), ctrl.Available())

	ch := chans[0]
	assert.Equal(t, dmac.PriorityLevel0, ch.Priority())
	assert.Equal(t, dmac.TriggerSAMD5xSercom0Tx, ch.Source())
	assert.Equal(t, dmac.TriggerBurst, ch.TriggerAction())
	bl, err := ch.BurstLength()
	require.NoError(t, err)
	assert.Equal(t, dmac.Burst4Beats, bl)
	th, err := ch.FifoThreshold()
	require.NoError(t, err)
	assert.Equal(t, dmac.Threshold2Beats, th)
	assert.Equal(t, dmac.InterruptTransferError|dmac.InterruptTransferComplete, ch.EnabledInterrupts())
	assert.False(t, ch.RunStandby())

	ch = chans[3]
	assert.Equal(t, dmac.PriorityLevel2, ch.Priority())
	assert.Equal(t, dmac.TriggerTransaction, ch.TriggerAction())
	assert.True(t, ch.RunStandby())
	assert.Equal(t, dmac.InterruptNone, ch.EnabledInterrupts())
}

func TestBuild_SAMD21(t *testing.T) {
	c, err := Parse([]byte(samd21Profile))
	require.NoError(t, err)

	ctrl, err := c.Build(sim.New(hal.SAMD21))
	require.NoError(t, err)

	for target, want := range map[dmac.BusTarget]dmac.QoS{
		dmac.BusData:      dmac.QoSCritical,
		dmac.BusFetch:     dmac.QoSLow,
		dmac.BusWriteBack: dmac.QoSDisable,
	} {
		got, err := ctrl.BusQoS(target)
		require.NoError(t, err)
		assert.Equal(t, want, got, target.String())
	}

	chans, err := c.TakeChannels(ctrl)
	require.NoError(t, err)
	assert.Equal(t, dmac.TriggerSAMD21Sercom0Tx, chans[1].Source())
	assert.Equal(t, dmac.TriggerBeat, chans[1].TriggerAction())
}

func TestApply_DisabledController(t *testing.T) {
	c, err := Parse([]byte("family: samd51\nchannels: 2\nenable: false\n"))
	require.NoError(t, err)
	ctrl, err := c.Build(sim.New(hal.SAMD5x))
	require.NoError(t, err)
	assert.False(t, ctrl.IsEnabled())
}

func TestApply_ControllerTooSmall(t *testing.T) {
	c, err := Parse([]byte("family: samd51\nchannels: 8\n"))
	require.NoError(t, err)

	storage, err := dmac.NewStorage(2)
	require.NoError(t, err)
	ctrl, err := dmac.NewController(sim.New(hal.SAMD5x), hal.SAMD5x, storage)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Apply(ctrl), pkg.ErrInvalidProfile)
}

func TestTakeChannels_ReleasesOnError(t *testing.T) {
	c, err := Parse([]byte(samd51Profile))
	require.NoError(t, err)
	ctrl, err := c.Build(sim.New(hal.SAMD5x))
	require.NoError(t, err)

	held, err := ctrl.TakeChannel(3)
	require.NoError(t, err)

	_, err = c.TakeChannels(ctrl)
	assert.ErrorIs(t, err, pkg.ErrChannelUnavailable)
	assert.Equal(t, dmac.ChannelsOf(0, 1, 2), ctrl.Available())

	require.NoError(t, ctrl.ReturnChannel(held))
	_, err = c.TakeChannels(ctrl)
	assert.NoError(t, err)
}

func TestChannelConfig_ApplyWrongChannel(t *testing.T) {
	c, err := Parse([]byte(samd51Profile))
	require.NoError(t, err)
	ctrl, err := c.Build(sim.New(hal.SAMD5x))
	require.NoError(t, err)

	ch, err := ctrl.TakeChannel(1)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Channel[0].Apply(ch), pkg.ErrInvalidParameter)
}

func TestMarshal_RoundTrip(t *testing.T) {
	for _, profile := range []string{samd51Profile, samd21Profile} {
		c, err := Parse([]byte(profile))
		require.NoError(t, err)

		out, err := c.Marshal()
		require.NoError(t, err)

		again, err := Parse(out)
		require.NoError(t, err, string(out))
		assert.Equal(t, c, again)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dmac.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samd21Profile), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "samd21", c.Family)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("family: [\n"), 0o644))
	_, err = LoadFile(bad)
	assert.ErrorIs(t, err, pkg.ErrInvalidProfile)
	assert.True(t, strings.HasPrefix(err.Error(), bad))
}
