package show

import (
	"errors"
	"fmt"
)

// DefaultSenderName is the sender/server name given to new network outputs.
const DefaultSenderName = "LivePlayer"

var (
	// ErrIncompatibleOutput is returned when a media item targets an output of the wrong kind.
	ErrIncompatibleOutput = errors.New("media type is not compatible with output type")
	// ErrUnknownOutputType is returned for output types outside the known set.
	ErrUnknownOutputType = errors.New("unknown output type")
)

// Compatible reports whether a media item of type m may play on an output of type o.
// Video pairs with any non-audio output; audio pairs only with audio outputs.
func Compatible(m MediaType, o OutputType) bool {
	switch m {
	case MediaVideo:
		return o.IsVideo()
	case MediaAudio:
		return o == OutputAudio
	}
	return false
}

// ApplyTypeDefaults switches out to type t, keeping the fields that still
// apply and defaulting the ones that are missing. Fields belonging to other
// types are cleared. Audio outputs never carry a brightness override.
func ApplyTypeDefaults(out *OutputTarget, t OutputType) {
	out.Type = t

	if t != OutputDisplay {
		out.DisplayIndex = nil
		out.Fullscreen = nil
	}
	if t != OutputNDI {
		out.NDIName = nil
	}
	if t != OutputSyphon {
		out.SyphonName = nil
	}
	if t != OutputSpout {
		out.SpoutName = nil
	}
	if t != OutputAudio {
		out.AudioDriver = nil
		out.AudioDevice = nil
		out.AudioChannels = nil
	}

	switch t {
	case OutputDisplay:
		if out.DisplayIndex == nil {
			out.DisplayIndex = Ptr(0)
		}
		if out.Fullscreen == nil {
			out.Fullscreen = Ptr(true)
		}
	case OutputNDI:
		if out.NDIName == nil {
			out.NDIName = Ptr(DefaultSenderName)
		}
	case OutputSyphon:
		if out.SyphonName == nil {
			out.SyphonName = Ptr(DefaultSenderName)
		}
	case OutputSpout:
		if out.SpoutName == nil {
			out.SpoutName = Ptr(DefaultSenderName)
		}
	case OutputAudio:
		if out.AudioDriver == nil {
			out.AudioDriver = Ptr(AudioDriverAuto)
		}
		out.Brightness = Linked()
	}
}

// CheckAssignment verifies that item may target outputID within p.
// An empty outputID is always allowed (unassigned).
func CheckAssignment(p *Project, item MediaItem) error {
	if item.Type != MediaVideo && item.Type != MediaAudio {
		return fmt.Errorf("unknown media type %q", item.Type)
	}
	if item.OutputID == "" {
		return nil
	}
	out := p.Output(item.OutputID)
	if out == nil {
		return fmt.Errorf("output %s: %w", item.OutputID, ErrOutputMissing)
	}
	if !Compatible(item.Type, out.Type) {
		return fmt.Errorf("%s item on %s output %s: %w", item.Type, out.Type, out.ID, ErrIncompatibleOutput)
	}
	return nil
}

// ErrOutputMissing is returned when an item references an output that does not exist.
var ErrOutputMissing = errors.New("output does not exist")

// Validate checks the structural invariants of a project: unique ids, known
// output types, item assignments that reference present and compatible
// outputs, and at most one item per output within a cue.
func Validate(p *Project) error {
	outputIDs := make(map[string]bool, len(p.Outputs))
	for _, o := range p.Outputs {
		if outputIDs[o.ID] {
			return fmt.Errorf("duplicate output id %s", o.ID)
		}
		if !o.Type.Valid() {
			return fmt.Errorf("output %s: %w: %q", o.ID, ErrUnknownOutputType, o.Type)
		}
		outputIDs[o.ID] = true
	}

	cueIDs := make(map[string]bool, len(p.Cues))
	for _, c := range p.Cues {
		if cueIDs[c.ID] {
			return fmt.Errorf("duplicate cue id %s", c.ID)
		}
		cueIDs[c.ID] = true

		used := make(map[string]string)
		for _, item := range c.Items {
			if err := CheckAssignment(p, item); err != nil {
				return fmt.Errorf("cue %s item %s: %w", c.ID, item.ID, err)
			}
			if item.OutputID == "" {
				continue
			}
			if other, ok := used[item.OutputID]; ok {
				return fmt.Errorf("cue %s: items %s and %s both target output %s", c.ID, other, item.ID, item.OutputID)
			}
			used[item.OutputID] = item.ID
		}
	}
	return nil
}
