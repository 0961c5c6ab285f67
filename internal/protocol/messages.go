package protocol

import "time"

// BookRequest asks the runtime to synthesize one document into an audiobook.
// JobID may be empty; the pipeline assigns one and echoes it in every event.
type BookRequest struct {
	JobID      string `json:"job_id,omitempty"`
	SourcePath string `json:"source_path"`
	Voice      string `json:"voice,omitempty"`
	Format     string `json:"format,omitempty"`
	OutputDir  string `json:"output_dir,omitempty"`
	Title      string `json:"title,omitempty"`
	Author     string `json:"author,omitempty"`
}

// JobCancel requests cooperative cancellation of a running job.
type JobCancel struct {
	JobID string `json:"job_id"`
}

// JobProgress is published after every synthesized chunk.
type JobProgress struct {
	JobID     string    `json:"job_id"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Chapter   string    `json:"chapter,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// JobDone reports a job's terminal state.
type JobDone struct {
	JobID        string    `json:"job_id"`
	Status       string    `json:"status"` // completed, failed, cancelled
	Error        string    `json:"error,omitempty"`
	MergedPath   string    `json:"merged_path,omitempty"`
	ChapterPaths []string  `json:"chapter_paths,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

const (
	SubjectBookRequest = "book.synthesize.request"
	SubjectJobCancel   = "book.synthesize.cancel"
	SubjectJobProgress = "book.synthesize.progress"
	SubjectJobDone     = "book.synthesize.done"
)
