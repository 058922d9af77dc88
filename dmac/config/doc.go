// Package config loads DMAC controller and channel profiles from YAML.
//
// A profile names the device family, the number of channels to back with
// descriptor storage, the arbitration levels, and the settings of each
// channel the application uses:
//
//	family: samd51
//	channels: 4
//	enable: true
//	levels:
//	  - level: level0
//	    enabled: true
//	    round_robin: true
//	    qos: medium
//	channel:
//	  - id: 0
//	    priority: level0
//	    source: 0x05
//	    action: burst
//	    burst_length: 4beat
//	    interrupts: terr|tcmpl
//
// Enumerated values use the text forms of the dmac types. Trigger sources
// are raw codes, in any integer notation YAML accepts, or "software".
//
// [Config.Build] creates storage and a controller from a profile;
// [Config.Apply] and [ChannelConfig.Apply] configure existing ones.
package config
