// Package show contains the project, cue and output definitions shared by the
// control services and the playback engine collaborators.
package show

// MediaType is the kind of file a media item plays.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// OutputType is the kind of destination an output target renders to.
type OutputType string

const (
	OutputDisplay OutputType = "display"
	OutputNDI     OutputType = "ndi"
	OutputSyphon  OutputType = "syphon"
	OutputSpout   OutputType = "spout"
	OutputAudio   OutputType = "audio"
)

// Valid reports whether t is a known output type.
func (t OutputType) Valid() bool {
	switch t {
	case OutputDisplay, OutputNDI, OutputSyphon, OutputSpout, OutputAudio:
		return true
	}
	return false
}

// IsVideo reports whether outputs of this type carry video (and brightness).
func (t OutputType) IsVideo() bool {
	return t.Valid() && t != OutputAudio
}

// AudioDriver selects the host audio API for an audio output.
type AudioDriver string

const (
	AudioDriverAuto      AudioDriver = "auto"
	AudioDriverASIO      AudioDriver = "asio"
	AudioDriverWASAPI    AudioDriver = "wasapi"
	AudioDriverCoreAudio AudioDriver = "coreaudio"
	AudioDriverJack      AudioDriver = "jack"
	AudioDriverALSA      AudioDriver = "alsa"
)

// PreviewQuality is the operator preview rendering quality.
type PreviewQuality string

const (
	PreviewLow    PreviewQuality = "low"
	PreviewMedium PreviewQuality = "medium"
	PreviewHigh   PreviewQuality = "high"
)

// MediaItem is a single playable file bound to one output.
type MediaItem struct {
	ID        string    `json:"id"`
	Type      MediaType `json:"type"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	OutputID  string    `json:"outputId"`
	Offset    *float64  `json:"offset,omitempty"`
	TrimStart *float64  `json:"trimStart,omitempty"`
	TrimEnd   *float64  `json:"trimEnd,omitempty"`
}

// Cue is a named set of media items played together.
// Duration is computed by the engine; the value here is informational.
type Cue struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Items       []MediaItem `json:"items"`
	Duration    float64     `json:"duration"`
	Loop        bool        `json:"loop"`
	AutoAdvance bool        `json:"autoAdvance"`
	Color       *string     `json:"color,omitempty"`
}

// OutputTarget is a destination for rendered audio or video.
type OutputTarget struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       OutputType `json:"type"`
	Brightness Brightness `json:"brightness"`

	// Display
	DisplayIndex *int  `json:"displayIndex,omitempty"`
	Fullscreen   *bool `json:"fullscreen,omitempty"`

	// Network senders
	NDIName    *string `json:"ndiName,omitempty"`
	SyphonName *string `json:"syphonName,omitempty"`
	SpoutName  *string `json:"spoutName,omitempty"`

	// Audio
	AudioDriver   *AudioDriver `json:"audioDriver,omitempty"`
	AudioDevice   *string      `json:"audioDevice,omitempty"`
	AudioChannels []int        `json:"audioChannels,omitempty"`
}

// ProjectSettings holds per-project preferences.
type ProjectSettings struct {
	DefaultBrightness float64        `json:"defaultBrightness"`
	AutoSave          bool           `json:"autoSave"`
	PreviewQuality    PreviewQuality `json:"previewQuality"`
}

// DefaultSettings returns the settings given to new projects.
func DefaultSettings() ProjectSettings {
	return ProjectSettings{
		DefaultBrightness: 100,
		AutoSave:          true,
		PreviewQuality:    PreviewMedium,
	}
}

// Project is the aggregate root of a show.
type Project struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	MasterBrightness float64         `json:"masterBrightness"`
	MasterVolume     float64         `json:"masterVolume"`
	Outputs          []OutputTarget  `json:"outputs"`
	Cues             []Cue           `json:"cues"`
	Settings         ProjectSettings `json:"settings"`
}

// NewProject returns an empty project with default levels and settings.
func NewProject(id, name string) *Project {
	return &Project{
		ID:               id,
		Name:             name,
		MasterBrightness: 100,
		MasterVolume:     100,
		Outputs:          []OutputTarget{},
		Cues:             []Cue{},
		Settings:         DefaultSettings(),
	}
}

// FindCue returns the index of the cue with the given id, or -1.
func (p *Project) FindCue(id string) int {
	for i := range p.Cues {
		if p.Cues[i].ID == id {
			return i
		}
	}
	return -1
}

// FindOutput returns the index of the output with the given id, or -1.
func (p *Project) FindOutput(id string) int {
	for i := range p.Outputs {
		if p.Outputs[i].ID == id {
			return i
		}
	}
	return -1
}

// Output returns a pointer to the output with the given id, or nil.
func (p *Project) Output(id string) *OutputTarget {
	if i := p.FindOutput(id); i >= 0 {
		return &p.Outputs[i]
	}
	return nil
}

// FindItem returns the index of the item with the given id, or -1.
func (c *Cue) FindItem(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Outputs = make([]OutputTarget, len(p.Outputs))
	for i := range p.Outputs {
		cp.Outputs[i] = p.Outputs[i].Clone()
	}
	cp.Cues = make([]Cue, len(p.Cues))
	for i := range p.Cues {
		cp.Cues[i] = p.Cues[i].Clone()
	}
	return &cp
}

// Clone returns a deep copy of the cue.
func (c Cue) Clone() Cue {
	c.Items = append([]MediaItem{}, c.Items...)
	for i := range c.Items {
		c.Items[i] = c.Items[i].Clone()
	}
	c.Color = clonePtr(c.Color)
	return c
}

// Clone returns a deep copy of the item.
func (m MediaItem) Clone() MediaItem {
	m.Offset = clonePtr(m.Offset)
	m.TrimStart = clonePtr(m.TrimStart)
	m.TrimEnd = clonePtr(m.TrimEnd)
	return m
}

// Clone returns a deep copy of the output.
func (o OutputTarget) Clone() OutputTarget {
	o.DisplayIndex = clonePtr(o.DisplayIndex)
	o.Fullscreen = clonePtr(o.Fullscreen)
	o.NDIName = clonePtr(o.NDIName)
	o.SyphonName = clonePtr(o.SyphonName)
	o.SpoutName = clonePtr(o.SpoutName)
	o.AudioDriver = clonePtr(o.AudioDriver)
	o.AudioDevice = clonePtr(o.AudioDevice)
	if o.AudioChannels != nil {
		o.AudioChannels = append([]int{}, o.AudioChannels...)
	}
	return o
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
