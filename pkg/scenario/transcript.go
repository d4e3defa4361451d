package scenario

import (
	"strings"
)

// Entry is one line of the transcript.
type Entry struct {
	BeatID  string `json:"storyID"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Transcript records each beat seen, once. A beat revisited through a jump
// or choice keeps its first position and is not appended again.
type Transcript struct {
	entries []Entry
	seen    map[string]struct{}
}

func NewTranscript() *Transcript {
	return &Transcript{seen: make(map[string]struct{})}
}

// Append adds entry unless its beat id was already recorded.
func (t *Transcript) Append(entry Entry) bool {
	if _, ok := t.seen[entry.BeatID]; ok {
		return false
	}
	t.seen[entry.BeatID] = struct{}{}
	t.entries = append(t.entries, entry)
	return true
}

func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	return len(t.entries)
}

func (t *Transcript) Contains(beatID string) bool {
	_, ok := t.seen[beatID]
	return ok
}

func (t *Transcript) Reset() {
	t.entries = nil
	t.seen = make(map[string]struct{})
}

// Format renders the transcript as "Speaker: text" lines. Narration without
// a speaker is written as bare text.
func (t *Transcript) Format() string {
	var sb strings.Builder
	for i, e := range t.entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		if e.Speaker != "" {
			sb.WriteString(e.Speaker)
			sb.WriteString(": ")
		}
		sb.WriteString(e.Text)
	}
	return sb.String()
}
