package assemble

import "fmt"

// Chapter records one chapter's placement on the merged timeline. Start and
// End are seconds from the beginning of the output stream. The chapter gap
// between chapters is counted on the timeline but inside neither span.
type Chapter struct {
	Title string  `json:"title"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Metadata holds the container tags embedded into the output file.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Year        string `json:"year,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Composer    string `json:"composer,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Description string `json:"description,omitempty"`
}

// ContainerMuxError reports a nonzero exit from the external muxer with its
// stderr attached. Fatal for the whole assembly step.
type ContainerMuxError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ContainerMuxError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("muxer %q failed: %v: %s", e.Command, e.Err, e.Stderr)
	}
	return fmt.Sprintf("muxer %q failed: %v", e.Command, e.Err)
}

func (e *ContainerMuxError) Unwrap() error { return e.Err }
