package script

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Beat is one atomic unit of the script: a line of dialogue or narration
// plus the event it triggers. Beats are immutable once loaded.
type Beat struct {
	ID      string
	Speaker string
	Text    string
	Tags    []string
	Event   Event
	Flags   FlagSet
	Effects []string
	Tips    []string
	Note    string
}

// EventType returns the type of the beat's event, NONE when unset.
func (b Beat) EventType() EventType {
	if b.Event == nil {
		return EventNone
	}
	return b.Event.Type()
}

// Choices returns the choice list of a CHOICE beat, nil otherwise.
func (b Beat) Choices() []Choice {
	if ev, ok := b.Event.(ChoiceEvent); ok {
		return ev.Choices
	}
	return nil
}

// wireBeat mirrors the scenario file format.
type wireBeat struct {
	ID      string     `json:"storyID" yaml:"storyID"`
	Speaker string     `json:"speaker" yaml:"speaker"`
	Text    string     `json:"text" yaml:"text"`
	Tags    []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Event   *wireEvent `json:"event,omitempty" yaml:"event,omitempty"`
	Flags   FlagSet    `json:"flags,omitempty" yaml:"flags,omitempty"`
	Effects []string   `json:"effects,omitempty" yaml:"effects,omitempty"`
	Tips    []string   `json:"tips,omitempty" yaml:"tips,omitempty"`
	Note    string     `json:"note,omitempty" yaml:"note,omitempty"`
}

func (w wireBeat) toBeat() (Beat, error) {
	ev, err := w.Event.toEvent()
	if err != nil {
		return Beat{}, fmt.Errorf("beat %q: %w", w.ID, err)
	}
	return Beat{
		ID:      w.ID,
		Speaker: w.Speaker,
		Text:    w.Text,
		Tags:    w.Tags,
		Event:   ev,
		Flags:   w.Flags,
		Effects: w.Effects,
		Tips:    w.Tips,
		Note:    w.Note,
	}, nil
}

func (b *Beat) UnmarshalJSON(data []byte) error {
	var w wireBeat
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	beat, err := w.toBeat()
	if err != nil {
		return err
	}
	*b = beat
	return nil
}

func (b *Beat) UnmarshalYAML(node *yaml.Node) error {
	var w wireBeat
	if err := node.Decode(&w); err != nil {
		return err
	}
	beat, err := w.toBeat()
	if err != nil {
		return err
	}
	*b = beat
	return nil
}

func (b Beat) MarshalJSON() ([]byte, error) {
	ev := fromEvent(b.Event)
	return json.Marshal(wireBeat{
		ID:      b.ID,
		Speaker: b.Speaker,
		Text:    b.Text,
		Tags:    b.Tags,
		Event:   &ev,
		Flags:   b.Flags,
		Effects: b.Effects,
		Tips:    b.Tips,
		Note:    b.Note,
	})
}
