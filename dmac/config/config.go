package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/samdma/dmac"
	"github.com/ardnew/samdma/dmac/hal"
	"github.com/ardnew/samdma/pkg"
)

// Config is a controller profile.
type Config struct {
	Family   string                      `yaml:"family"`
	Channels int                         `yaml:"channels"`
	Enable   bool                        `yaml:"enable"`
	DebugRun bool                        `yaml:"debug_run,omitempty"`
	Levels   []Level                     `yaml:"levels,omitempty"`
	BusQoS   map[dmac.BusTarget]dmac.QoS `yaml:"bus_qos,omitempty"`
	Channel  []ChannelConfig             `yaml:"channel,omitempty"`
}

// Level configures one arbitration priority level.
type Level struct {
	Level      dmac.Priority `yaml:"level"`
	Enabled    bool          `yaml:"enabled"`
	RoundRobin bool          `yaml:"round_robin,omitempty"`
	QoS        *dmac.QoS     `yaml:"qos,omitempty"`
}

// ChannelConfig configures one channel.
type ChannelConfig struct {
	ID          uint8               `yaml:"id"`
	Priority    dmac.Priority       `yaml:"priority"`
	Source      dmac.TriggerSource  `yaml:"source"`
	Action      dmac.TriggerAction  `yaml:"action"`
	RunStandby  bool                `yaml:"run_standby,omitempty"`
	BurstLength *dmac.BurstLength   `yaml:"burst_length,omitempty"`
	Threshold   *dmac.FifoThreshold `yaml:"threshold,omitempty"`
	Interrupts  dmac.Interrupts     `yaml:"interrupts"`
}

// Parse decodes and validates a profile. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	return Load(bytes.NewReader(data))
}

// Load decodes and validates a profile read from r.
func Load(r io.Reader) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", pkg.ErrInvalidProfile)
		}
		return nil, fmt.Errorf("%w: %w", pkg.ErrInvalidProfile, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile decodes and validates the profile at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pkg.LogDebug(pkg.ComponentConfig, "profile loaded", "path", path, "family", c.Family)
	return c, nil
}

// Marshal encodes the profile as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Variant returns the family the profile targets.
func (c *Config) Variant() (hal.Variant, error) {
	v, ok := hal.Lookup(c.Family)
	if !ok {
		return nil, fmt.Errorf("%w: unknown family %q", pkg.ErrInvalidProfile, c.Family)
	}
	return v, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{pkg.ErrInvalidProfile}, args...)...)
}

// Validate checks the profile against the family's capabilities.
func (c *Config) Validate() error {
	v, err := c.Variant()
	if err != nil {
		return err
	}
	if c.Channels < 1 || c.Channels > v.MaxChannels() {
		return invalid("channels %d outside 1..%d for %s", c.Channels, v.MaxChannels(), v.Name())
	}

	seenLevel := make(map[dmac.Priority]bool)
	for _, l := range c.Levels {
		if !l.Level.Valid() {
			return invalid("level %s", l.Level)
		}
		if seenLevel[l.Level] {
			return invalid("level %s listed twice", l.Level)
		}
		seenLevel[l.Level] = true
		if l.QoS != nil {
			if _, ok := v.LevelQoS(uint8(l.Level)); !ok {
				return invalid("level qos not available on %s", v.Name())
			}
		}
	}

	if len(c.BusQoS) > 0 {
		if _, ok := v.BusQoS(hal.BusData); !ok {
			return invalid("bus qos not available on %s", v.Name())
		}
	}

	seenID := make(map[uint8]bool)
	for i := range c.Channel {
		ch := &c.Channel[i]
		if int(ch.ID) >= c.Channels {
			return invalid("channel %d outside 0..%d", ch.ID, c.Channels-1)
		}
		if seenID[ch.ID] {
			return invalid("channel %d listed twice", ch.ID)
		}
		seenID[ch.ID] = true
		if err := ch.validate(v); err != nil {
			return err
		}
	}
	return nil
}

func (cc *ChannelConfig) validate(v hal.Variant) error {
	if !cc.Priority.Valid() || !cc.Action.Valid() || !cc.Interrupts.Valid() {
		return invalid("channel %d: priority %s, action %s, interrupts %s",
			cc.ID, cc.Priority, cc.Action, cc.Interrupts)
	}
	if spec, ok := v.ChannelField(hal.ChannelTriggerSource); ok && uint32(cc.Source) >= 1<<spec.Width {
		return invalid("channel %d: source %s wider than %d bits", cc.ID, cc.Source, spec.Width)
	}
	if cc.BurstLength != nil {
		if _, ok := v.ChannelField(hal.ChannelBurstLength); !ok {
			return invalid("channel %d: burst length not available on %s", cc.ID, v.Name())
		}
	}
	if cc.Threshold != nil {
		if _, ok := v.ChannelField(hal.ChannelThreshold); !ok {
			return invalid("channel %d: threshold not available on %s", cc.ID, v.Name())
		}
	}
	return nil
}

// Build allocates storage for the profile's channels, creates a controller
// on bus and applies the profile to it.
func (c *Config) Build(bus hal.Bus) (*dmac.Controller, error) {
	v, err := c.Variant()
	if err != nil {
		return nil, err
	}
	storage, err := dmac.NewStorage(c.Channels)
	if err != nil {
		return nil, err
	}
	ctrl, err := dmac.NewController(bus, v, storage)
	if err != nil {
		return nil, err
	}
	if err := c.Apply(ctrl); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// Apply writes the controller-wide settings. The controller is enabled
// last, and only if the profile says so.
func (c *Config) Apply(ctrl *dmac.Controller) error {
	if ctrl.NumChannels() < c.Channels {
		return invalid("profile needs %d channels, controller has %d", c.Channels, ctrl.NumChannels())
	}
	ctrl.SetDebugRun(c.DebugRun)

	for _, l := range c.Levels {
		var err error
		if l.Enabled {
			err = ctrl.EnablePriorityLevel(l.Level)
		} else {
			err = ctrl.DisablePriorityLevel(l.Level)
		}
		if err == nil {
			err = ctrl.SetRoundRobin(l.Level, l.RoundRobin)
		}
		if err == nil && l.QoS != nil {
			err = ctrl.SetLevelQoS(l.Level, *l.QoS)
		}
		if err != nil {
			return fmt.Errorf("level %s: %w", l.Level, err)
		}
	}

	targets := make([]dmac.BusTarget, 0, len(c.BusQoS))
	for t := range c.BusQoS {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	for _, t := range targets {
		if err := ctrl.SetBusQoS(t, c.BusQoS[t]); err != nil {
			return fmt.Errorf("bus qos %s: %w", t, err)
		}
	}

	if c.Enable {
		ctrl.Enable()
	}
	pkg.LogInfo(pkg.ComponentConfig, "profile applied",
		"family", ctrl.Variant().Name(),
		"channels", c.Channels,
		"levels", len(c.Levels),
		"enabled", c.Enable)
	return nil
}

// TakeChannels takes every channel the profile lists from ctrl and applies
// its settings. On error, channels already taken are returned.
func (c *Config) TakeChannels(ctrl *dmac.Controller) (map[uint8]*dmac.Channel, error) {
	taken := make(map[uint8]*dmac.Channel, len(c.Channel))
	release := func() {
		for _, ch := range taken {
			_ = ctrl.ReturnChannel(ch)
		}
	}
	for i := range c.Channel {
		cc := &c.Channel[i]
		ch, err := ctrl.TakeChannel(cc.ID)
		if err != nil {
			release()
			return nil, err
		}
		taken[cc.ID] = ch
		if err := cc.Apply(ch); err != nil {
			release()
			return nil, err
		}
	}
	return taken, nil
}

// Apply writes the channel settings. The channel should be disabled.
func (cc *ChannelConfig) Apply(ch *dmac.Channel) error {
	if ch.ID() != cc.ID {
		return fmt.Errorf("%w: profile for channel %d applied to channel %d",
			pkg.ErrInvalidParameter, cc.ID, ch.ID())
	}
	if err := ch.SetPriority(cc.Priority); err != nil {
		return fmt.Errorf("channel %d: %w", cc.ID, err)
	}
	if err := ch.SetSource(cc.Source); err != nil {
		return fmt.Errorf("channel %d: %w", cc.ID, err)
	}
	if err := ch.SetTriggerAction(cc.Action); err != nil {
		return fmt.Errorf("channel %d: %w", cc.ID, err)
	}
	ch.SetRunStandby(cc.RunStandby)
	if cc.BurstLength != nil {
		if err := ch.SetBurstLength(*cc.BurstLength); err != nil {
			return fmt.Errorf("channel %d: %w", cc.ID, err)
		}
	}
	if cc.Threshold != nil {
		if err := ch.SetFifoThreshold(*cc.Threshold); err != nil {
			return fmt.Errorf("channel %d: %w", cc.ID, err)
		}
	}
	ch.EnableInterrupts(cc.Interrupts)
	pkg.LogDebug(pkg.ComponentConfig, "channel configured",
		"id", cc.ID,
		"priority", cc.Priority.String(),
		"source", cc.Source.String(),
		"action", cc.Action.String(),
		"interrupts", cc.Interrupts.String())
	return nil
}
