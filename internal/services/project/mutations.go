package project

import (
	"context"
	"fmt"

	"github.com/lucsky/cuid"

	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// CueUpdate holds the cue fields to change. Nil fields are left as they are.
// An empty Color clears the color.
type CueUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	Loop        *bool    `json:"loop,omitempty"`
	AutoAdvance *bool    `json:"autoAdvance,omitempty"`
	Color       *string  `json:"color,omitempty"`
}

// ItemUpdate holds the media item fields to change. Nil fields are left as
// they are. An empty OutputID unassigns the item.
type ItemUpdate struct {
	Name      *string  `json:"name,omitempty"`
	Path      *string  `json:"path,omitempty"`
	OutputID  *string  `json:"outputId,omitempty"`
	Offset    *float64 `json:"offset,omitempty"`
	TrimStart *float64 `json:"trimStart,omitempty"`
	TrimEnd   *float64 `json:"trimEnd,omitempty"`
}

// OutputUpdate holds the output fields to change. Nil fields are left as
// they are. Changing Type resets the fields of the old type before the
// other fields are applied. SenderName sets the ndi, syphon or spout name,
// whichever the output's type uses.
type OutputUpdate struct {
	Name          *string           `json:"name,omitempty"`
	Type          *show.OutputType  `json:"type,omitempty"`
	DisplayIndex  *int              `json:"displayIndex,omitempty"`
	Fullscreen    *bool             `json:"fullscreen,omitempty"`
	SenderName    *string           `json:"senderName,omitempty"`
	AudioDriver   *show.AudioDriver `json:"audioDriver,omitempty"`
	AudioDevice   *string           `json:"audioDevice,omitempty"`
	AudioChannels []int             `json:"audioChannels,omitempty"`
}

// AddCue appends a cue. A blank id is generated and a blank name becomes
// "Cue N". Items are checked like AddItem, with later items replacing
// earlier ones on the same output.
func (s *Service) AddCue(cue show.Cue) (show.Cue, error) {
	cue = cue.Clone()
	if cue.ID == "" {
		cue.ID = cuid.New()
	}
	items := cue.Items
	cue.Items = []show.MediaItem{}

	err := s.mutate(func(p *show.Project) error {
		if p.FindCue(cue.ID) >= 0 {
			return fmt.Errorf("cue %s: %w", cue.ID, ErrDuplicateID)
		}
		if cue.Name == "" {
			cue.Name = fmt.Sprintf("Cue %d", len(p.Cues)+1)
		}
		for _, item := range items {
			if item.ID == "" {
				item.ID = cuid.New()
			}
			if err := show.CheckAssignment(p, item); err != nil {
				return err
			}
			cue.Items = placeItem(cue.Items, item)
		}
		p.Cues = append(p.Cues, cue.Clone())
		return nil
	})
	if err != nil {
		return show.Cue{}, err
	}
	return cue, nil
}

// UpdateCue changes the given fields of a cue.
func (s *Service) UpdateCue(id string, u CueUpdate) (show.Cue, error) {
	var updated show.Cue
	err := s.mutate(func(p *show.Project) error {
		i := p.FindCue(id)
		if i < 0 {
			return fmt.Errorf("cue %s: %w", id, ErrCueNotFound)
		}
		c := &p.Cues[i]
		if u.Name != nil {
			c.Name = *u.Name
		}
		if u.Duration != nil {
			c.Duration = *u.Duration
		}
		if u.Loop != nil {
			c.Loop = *u.Loop
		}
		if u.AutoAdvance != nil {
			c.AutoAdvance = *u.AutoAdvance
		}
		if u.Color != nil {
			if *u.Color == "" {
				c.Color = nil
			} else {
				c.Color = show.Ptr(*u.Color)
			}
		}
		updated = c.Clone()
		return nil
	})
	return updated, err
}

// RemoveCue deletes a cue and notifies the cue-removed callback with the
// index it had.
func (s *Service) RemoveCue(id string) error {
	removed := -1
	err := s.mutate(func(p *show.Project) error {
		i := p.FindCue(id)
		if i < 0 {
			return fmt.Errorf("cue %s: %w", id, ErrCueNotFound)
		}
		p.Cues = append(p.Cues[:i:i], p.Cues[i+1:]...)
		removed = i
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.RLock()
	fn := s.onCueRemoved
	s.mu.RUnlock()
	if fn != nil {
		fn(removed)
	}
	return nil
}

// ReorderCues moves the cue at from to position to.
func (s *Service) ReorderCues(from, to int) error {
	return s.mutate(func(p *show.Project) error {
		moved, err := splice(p.Cues, from, to)
		if err != nil {
			return err
		}
		p.Cues = moved
		return nil
	})
}

// AddItem adds a media item to a cue. If another item in the cue already
// targets the same output, the new item takes its place.
func (s *Service) AddItem(cueID string, item show.MediaItem) (show.MediaItem, error) {
	item = item.Clone()
	if item.ID == "" {
		item.ID = cuid.New()
	}
	err := s.mutate(func(p *show.Project) error {
		i := p.FindCue(cueID)
		if i < 0 {
			return fmt.Errorf("cue %s: %w", cueID, ErrCueNotFound)
		}
		if p.Cues[i].FindItem(item.ID) >= 0 {
			return fmt.Errorf("item %s: %w", item.ID, ErrDuplicateID)
		}
		if err := show.CheckAssignment(p, item); err != nil {
			return err
		}
		p.Cues[i].Items = placeItem(p.Cues[i].Items, item.Clone())
		return nil
	})
	if err != nil {
		return show.MediaItem{}, err
	}
	return item, nil
}

// UpdateItem changes the given fields of a media item. Moving it onto an
// output another item of the cue already uses replaces that item.
func (s *Service) UpdateItem(cueID, itemID string, u ItemUpdate) (show.MediaItem, error) {
	var updated show.MediaItem
	err := s.mutate(func(p *show.Project) error {
		ci := p.FindCue(cueID)
		if ci < 0 {
			return fmt.Errorf("cue %s: %w", cueID, ErrCueNotFound)
		}
		cue := &p.Cues[ci]
		ii := cue.FindItem(itemID)
		if ii < 0 {
			return fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
		}

		item := cue.Items[ii].Clone()
		if u.Name != nil {
			item.Name = *u.Name
		}
		if u.Path != nil {
			item.Path = *u.Path
		}
		if u.OutputID != nil {
			item.OutputID = *u.OutputID
		}
		if u.Offset != nil {
			item.Offset = show.Ptr(*u.Offset)
		}
		if u.TrimStart != nil {
			item.TrimStart = show.Ptr(*u.TrimStart)
		}
		if u.TrimEnd != nil {
			item.TrimEnd = show.Ptr(*u.TrimEnd)
		}
		if err := show.CheckAssignment(p, item); err != nil {
			return err
		}

		cue.Items[ii] = item
		if item.OutputID != "" {
			for j := len(cue.Items) - 1; j >= 0; j-- {
				if j != ii && cue.Items[j].OutputID == item.OutputID {
					cue.Items = append(cue.Items[:j:j], cue.Items[j+1:]...)
				}
			}
		}
		updated = item.Clone()
		return nil
	})
	return updated, err
}

// RemoveItem deletes a media item from a cue.
func (s *Service) RemoveItem(cueID, itemID string) error {
	return s.mutate(func(p *show.Project) error {
		ci := p.FindCue(cueID)
		if ci < 0 {
			return fmt.Errorf("cue %s: %w", cueID, ErrCueNotFound)
		}
		cue := &p.Cues[ci]
		ii := cue.FindItem(itemID)
		if ii < 0 {
			return fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
		}
		cue.Items = append(cue.Items[:ii:ii], cue.Items[ii+1:]...)
		return nil
	})
}

// AddOutput appends an output target. A blank id is generated, a blank
// name becomes "Output N", and the defaults of its type are filled in.
func (s *Service) AddOutput(out show.OutputTarget) (show.OutputTarget, error) {
	out = out.Clone()
	if !out.Type.Valid() {
		return show.OutputTarget{}, fmt.Errorf("%w: %q", ErrUnknownOutputType, out.Type)
	}
	if out.ID == "" {
		out.ID = cuid.New()
	}
	show.ApplyTypeDefaults(&out, out.Type)

	err := s.mutate(func(p *show.Project) error {
		if p.FindOutput(out.ID) >= 0 {
			return fmt.Errorf("output %s: %w", out.ID, ErrDuplicateID)
		}
		if out.Name == "" {
			out.Name = fmt.Sprintf("Output %d", len(p.Outputs)+1)
		}
		p.Outputs = append(p.Outputs, out.Clone())
		return nil
	})
	if err != nil {
		return show.OutputTarget{}, err
	}
	return out, nil
}

// UpdateOutput changes the given fields of an output. When the type changes,
// items that can no longer play on the output are unassigned.
func (s *Service) UpdateOutput(id string, u OutputUpdate) (show.OutputTarget, error) {
	if u.Type != nil && !u.Type.Valid() {
		return show.OutputTarget{}, fmt.Errorf("%w: %q", ErrUnknownOutputType, *u.Type)
	}
	var updated show.OutputTarget
	err := s.mutate(func(p *show.Project) error {
		i := p.FindOutput(id)
		if i < 0 {
			return fmt.Errorf("output %s: %w", id, ErrOutputNotFound)
		}
		out := p.Outputs[i].Clone()
		if u.Type != nil && *u.Type != out.Type {
			show.ApplyTypeDefaults(&out, *u.Type)
		}
		applyOutputUpdate(&out, u)
		p.Outputs[i] = out

		if u.Type != nil {
			unassignIncompatible(p, out)
		}
		updated = out.Clone()
		return nil
	})
	return updated, err
}

func applyOutputUpdate(out *show.OutputTarget, u OutputUpdate) {
	if u.Name != nil {
		out.Name = *u.Name
	}
	switch out.Type {
	case show.OutputDisplay:
		if u.DisplayIndex != nil {
			out.DisplayIndex = show.Ptr(*u.DisplayIndex)
		}
		if u.Fullscreen != nil {
			out.Fullscreen = show.Ptr(*u.Fullscreen)
		}
	case show.OutputNDI:
		if u.SenderName != nil {
			out.NDIName = show.Ptr(*u.SenderName)
		}
	case show.OutputSyphon:
		if u.SenderName != nil {
			out.SyphonName = show.Ptr(*u.SenderName)
		}
	case show.OutputSpout:
		if u.SenderName != nil {
			out.SpoutName = show.Ptr(*u.SenderName)
		}
	case show.OutputAudio:
		if u.AudioDriver != nil {
			out.AudioDriver = show.Ptr(*u.AudioDriver)
		}
		if u.AudioDevice != nil {
			out.AudioDevice = show.Ptr(*u.AudioDevice)
		}
		if u.AudioChannels != nil {
			out.AudioChannels = append([]int{}, u.AudioChannels...)
		}
	}
}

func unassignIncompatible(p *show.Project, out show.OutputTarget) {
	for ci := range p.Cues {
		items := p.Cues[ci].Items
		for ii := range items {
			if items[ii].OutputID == out.ID && !show.Compatible(items[ii].Type, out.Type) {
				items[ii].OutputID = ""
			}
		}
	}
}

// RemoveOutput deletes an output target. If it is open it is closed first.
// Items that targeted it are left unassigned.
func (s *Service) RemoveOutput(ctx context.Context, id string) error {
	if _, ok := s.Output(id); !ok {
		if s.Snapshot() == nil {
			return ErrNoProject
		}
		return fmt.Errorf("output %s: %w", id, ErrOutputNotFound)
	}

	s.mu.RLock()
	closer := s.closer
	s.mu.RUnlock()
	if closer != nil && closer.IsOpen(id) {
		closer.Close(ctx, id)
	}

	return s.mutate(func(p *show.Project) error {
		i := p.FindOutput(id)
		if i < 0 {
			return fmt.Errorf("output %s: %w", id, ErrOutputNotFound)
		}
		p.Outputs = append(p.Outputs[:i:i], p.Outputs[i+1:]...)
		for ci := range p.Cues {
			items := p.Cues[ci].Items
			for ii := range items {
				if items[ii].OutputID == id {
					items[ii].OutputID = ""
				}
			}
		}
		return nil
	})
}

// ReorderOutputs moves the output at from to position to.
func (s *Service) ReorderOutputs(from, to int) error {
	return s.mutate(func(p *show.Project) error {
		moved, err := splice(p.Outputs, from, to)
		if err != nil {
			return err
		}
		p.Outputs = moved
		return nil
	})
}

// SetOutputBrightness stores an output's brightness link or override. This
// is a project edit: it marks the project dirty and pushes a snapshot.
func (s *Service) SetOutputBrightness(id string, b show.Brightness) (show.OutputTarget, error) {
	var updated show.OutputTarget
	err := s.mutate(func(p *show.Project) error {
		out := p.Output(id)
		if out == nil {
			return fmt.Errorf("output %s: %w", id, ErrOutputNotFound)
		}
		if !out.Type.IsVideo() {
			return fmt.Errorf("output %s: %w", id, ErrNotVideoOutput)
		}
		out.Brightness = b
		updated = out.Clone()
		return nil
	})
	return updated, err
}

// placeItem appends item, or replaces the item already on its output.
func placeItem(items []show.MediaItem, item show.MediaItem) []show.MediaItem {
	if item.OutputID != "" {
		for i := range items {
			if items[i].OutputID == item.OutputID {
				items[i] = item
				return items
			}
		}
	}
	return append(items, item)
}

// splice removes the element at from and reinserts it at to.
func splice[T any](s []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(s) || to < 0 || to >= len(s) {
		return nil, fmt.Errorf("%w: move %d to %d of %d", ErrIndexOutOfRange, from, to, len(s))
	}
	out := make([]T, 0, len(s))
	out = append(out, s[:from]...)
	out = append(out, s[from+1:]...)
	v := s[from]
	out = append(out[:to], append([]T{v}, out[to:]...)...)
	return out, nil
}
