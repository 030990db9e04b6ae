// Package remote maps a MIDI control surface onto the player and the master
// levels.
package remote

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Action is what a decoded MIDI message asks for.
type Action int

const (
	ActionNone Action = iota
	ActionTogglePlay
	ActionStop
	ActionNext
	ActionPrev
	ActionMasterBrightness
	ActionMasterVolume
)

func (a Action) String() string {
	switch a {
	case ActionTogglePlay:
		return "toggle-play"
	case ActionStop:
		return "stop"
	case ActionNext:
		return "next"
	case ActionPrev:
		return "prev"
	case ActionMasterBrightness:
		return "master-brightness"
	case ActionMasterVolume:
		return "master-volume"
	}
	return "none"
}

// Command is a decoded message. Value is set for level actions, in 0-100.
type Command struct {
	Action Action
	Value  float64
}

func (c Command) String() string {
	switch c.Action {
	case ActionMasterBrightness, ActionMasterVolume:
		return fmt.Sprintf("%s = %.1f", c.Action, c.Value)
	}
	return c.Action.String()
}

// AnyChannel makes a Mapping accept messages on every MIDI channel.
const AnyChannel = -1

// Mapping assigns notes and controllers to actions.
type Mapping struct {
	Channel int

	TogglePlayNote uint8
	StopNote       uint8
	PrevNote       uint8
	NextNote       uint8

	BrightnessCC uint8
	VolumeCC     uint8
}

// DefaultMapping listens on all channels: notes 60-63 (C4 to D#4) are
// toggle play, stop, prev and next; CC 1 (mod wheel) is master brightness
// and CC 7 (channel volume) is master volume.
func DefaultMapping() Mapping {
	return Mapping{
		Channel:        AnyChannel,
		TogglePlayNote: 60,
		StopNote:       61,
		PrevNote:       62,
		NextNote:       63,
		BrightnessCC:   1,
		VolumeCC:       7,
	}
}

// Decoder turns MIDI messages into commands.
type Decoder struct {
	Mapping Mapping
}

// Decode returns the command for msg. ok is false for messages that map to
// nothing, including note releases.
func (d *Decoder) Decode(msg midi.Message) (cmd Command, ok bool) {
	var channel, key, velocity, controller, value uint8

	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		if velocity == 0 || !d.accepts(channel) {
			return Command{}, false
		}
		return d.decodeNote(key)

	case msg.GetControlChange(&channel, &controller, &value):
		if !d.accepts(channel) {
			return Command{}, false
		}
		return d.decodeCC(controller, value)
	}
	return Command{}, false
}

func (d *Decoder) accepts(channel uint8) bool {
	return d.Mapping.Channel == AnyChannel || int(channel) == d.Mapping.Channel
}

func (d *Decoder) decodeNote(key uint8) (Command, bool) {
	m := d.Mapping
	switch key {
	case m.TogglePlayNote:
		return Command{Action: ActionTogglePlay}, true
	case m.StopNote:
		return Command{Action: ActionStop}, true
	case m.PrevNote:
		return Command{Action: ActionPrev}, true
	case m.NextNote:
		return Command{Action: ActionNext}, true
	}
	return Command{}, false
}

func (d *Decoder) decodeCC(controller, value uint8) (Command, bool) {
	switch controller {
	case d.Mapping.BrightnessCC:
		return Command{Action: ActionMasterBrightness, Value: ScaleCC(value)}, true
	case d.Mapping.VolumeCC:
		return Command{Action: ActionMasterVolume, Value: ScaleCC(value)}, true
	}
	return Command{}, false
}

// ScaleCC maps a 7-bit controller value onto 0-100.
func ScaleCC(value uint8) float64 {
	if value > 127 {
		value = 127
	}
	return float64(value) * 100 / 127
}
