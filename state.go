package pdfview

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// State is a snapshot of the viewport that can be stored and restored
// later, possibly on a surface of another size. Scroll offsets are
// normalized by the effective scale so they keep their meaning when the
// document is reloaded at a different scale.
type State struct {
	// DocumentID identifies the document the state was taken from.
	DocumentID uuid.UUID `yaml:"document" json:"document"`
	// Scale is the user zoom factor.
	Scale float64 `yaml:"scale" json:"scale"`
	// FirstVisiblePage is the first page on screen.
	FirstVisiblePage int `yaml:"first_visible_page" json:"first_visible_page"`
	// NormalizedScrollX is the horizontal scroll in document units.
	NormalizedScrollX float64 `yaml:"scroll_x" json:"scroll_x"`
	// NormalizedScrollY is the scroll below the top of FirstVisiblePage
	// in document units.
	NormalizedScrollY float64 `yaml:"scroll_y" json:"scroll_y"`
}

// DocumentID returns the stable identity used for documents opened from
// uri.
func DocumentID(uri string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(uri))
}

// WriteState encodes s as YAML.
func WriteState(w io.Writer, s State) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("pdfview: encode state: %w", err)
	}
	return enc.Close()
}

// ReadState decodes a State written by WriteState.
func ReadState(r io.Reader) (State, error) {
	var s State
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return State{}, fmt.Errorf("pdfview: decode state: %w", err)
	}
	return s, nil
}
