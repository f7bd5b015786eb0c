package types

// SelectionDocument is one selection as stored in a project file
type SelectionDocument struct {
	CenterX int `json:"center_x"`
	CenterY int `json:"center_y"`
	Width   int `json:"width"`
	Height  int `json:"height"`
}

// SlideDocument is one slide as stored in a project file. Previews are never
// persisted.
type SlideDocument struct {
	Path       string              `json:"path"`
	Selections []SelectionDocument `json:"selections"`
}

// ProjectDocument is the on-disk project format (.scp). Field order is the
// key order written to disk.
type ProjectDocument struct {
	Name      string          `json:"name"`
	WorkIndex int             `json:"work_index"`
	Selection int             `json:"selection"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Slides    []SlideDocument `json:"slides"`
}

// ExportReport lists the files written and the files that failed during an
// export, by file name.
type ExportReport struct {
	Directory string   `json:"directory"`
	Exported  []string `json:"exported"`
	Failed    []string `json:"failed"`
	Skipped   []string `json:"skipped,omitempty"`
}

// OK reports whether nothing failed or was skipped
func (r ExportReport) OK() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}

// ExportOptions controls a batch export
type ExportOptions struct {
	OutputDir string
	Format    string
	Workers   int
	// Slides restricts the export to these 0-based slide indices. Empty
	// means every slide.
	Slides []int
}
