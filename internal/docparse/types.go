// Package docparse wraps the vendor document-understanding API: synchronous
// parsing, job-style parsing with polling, and structured extraction over
// markdown. It also owns normalization of the vendor's two wire shapes into
// one canonical chunk form.
package docparse

import (
	"encoding/json"
	"sort"
)

// ParsedDocument is the parse result cached per (folder, filename): the full
// document markdown plus the vendor's layout chunks.
type ParsedDocument struct {
	Markdown string  `json:"markdown"`
	Chunks   []Chunk `json:"chunks"`
}

// Chunk is one vendor-delimited fragment of a parsed document with its own
// markdown and layout grounding.
type Chunk struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Markdown  string     `json:"markdown"`
	Grounding *Grounding `json:"grounding,omitempty"`
	// PageNumber is the legacy top-level page field. Populated alongside
	// Grounding on write so older cached payloads stay readable.
	PageNumber *int `json:"page_number,omitempty"`
}

// Grounding is layout metadata tying a chunk back to its source location.
type Grounding struct {
	Page int  `json:"page"`
	Box  *Box `json:"box,omitempty"`
}

// Box is a bounding box in page coordinates.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// chunkWire accepts both vendor API generations: the current shape uses
// id + grounding.page, the legacy shape chunk_id + top-level page_number.
type chunkWire struct {
	ID         string     `json:"id"`
	ChunkID    string     `json:"chunk_id"`
	Type       string     `json:"type"`
	Markdown   string     `json:"markdown"`
	Grounding  *Grounding `json:"grounding"`
	PageNumber *int       `json:"page_number"`
}

// UnmarshalJSON normalizes either wire shape into the canonical chunk form.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var w chunkWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	c.ID = w.ID
	if c.ID == "" {
		c.ID = w.ChunkID
	}
	c.Type = w.Type
	c.Markdown = w.Markdown
	c.Grounding = w.Grounding
	c.PageNumber = w.PageNumber

	// Promote a legacy page number into grounding; mirror grounding's page
	// back into the legacy field so both readers see the same page.
	if c.Grounding == nil && w.PageNumber != nil {
		c.Grounding = &Grounding{Page: *w.PageNumber}
	}
	if c.Grounding != nil && c.PageNumber == nil {
		page := c.Grounding.Page
		c.PageNumber = &page
	}
	return nil
}

// boxWire accepts both full and abbreviated coordinate keys.
type boxWire struct {
	Left   *float64 `json:"left"`
	Top    *float64 `json:"top"`
	Right  *float64 `json:"right"`
	Bottom *float64 `json:"bottom"`
	L      *float64 `json:"l"`
	T      *float64 `json:"t"`
	R      *float64 `json:"r"`
	B      *float64 `json:"b"`
}

// UnmarshalJSON normalizes abbreviated box keys (l/t/r/b) into full names.
func (b *Box) UnmarshalJSON(data []byte) error {
	var w boxWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.Left = coord(w.Left, w.L)
	b.Top = coord(w.Top, w.T)
	b.Right = coord(w.Right, w.R)
	b.Bottom = coord(w.Bottom, w.B)
	return nil
}

func coord(full, abbrev *float64) float64 {
	if full != nil {
		return *full
	}
	if abbrev != nil {
		return *abbrev
	}
	return 0
}

// Page returns the chunk's page number, or -1 when no grounding exists.
func (c *Chunk) Page() int {
	if c.Grounding != nil {
		return c.Grounding.Page
	}
	if c.PageNumber != nil {
		return *c.PageNumber
	}
	return -1
}

// Pages returns the sorted distinct pages covered by the document's chunks.
func (d *ParsedDocument) Pages() []int {
	seen := map[int]bool{}
	for i := range d.Chunks {
		if p := d.Chunks[i].Page(); p >= 0 {
			seen[p] = true
		}
	}
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// ChunkTypeCounts returns how many chunks of each vendor type the document
// has. Chunks without a type are counted as "unknown".
func (d *ParsedDocument) ChunkTypeCounts() map[string]int {
	counts := map[string]int{}
	for i := range d.Chunks {
		t := d.Chunks[i].Type
		if t == "" {
			t = "unknown"
		}
		counts[t]++
	}
	return counts
}
