package domain

import "strings"

// JobStatus is the closed set of statuses the backend reports for documents and quizzes.
// Raw strings are converted with ParseJobStatus at the API boundary.
type JobStatus string

const (
	JobUnknown       JobStatus = "unknown"
	JobPending       JobStatus = "pending"
	JobUploaded      JobStatus = "uploaded"
	JobProcessing    JobStatus = "processing"
	JobTextExtracted JobStatus = "text-extracted"
	JobGenerating    JobStatus = "generating"
	JobSummaryReady  JobStatus = "summary-ready"
	JobSummarized    JobStatus = "summarized"
	JobCompleted     JobStatus = "completed"
	JobReady         JobStatus = "ready"
	JobFailed        JobStatus = "failed"
)

var knownStatuses = map[JobStatus]struct{}{
	JobPending:       {},
	JobUploaded:      {},
	JobProcessing:    {},
	JobTextExtracted: {},
	JobGenerating:    {},
	JobSummaryReady:  {},
	JobSummarized:    {},
	JobCompleted:     {},
	JobReady:         {},
	JobFailed:        {},
}

// ParseJobStatus normalizes a raw backend status. Case, surrounding space and
// underscores vs hyphens are ignored; anything unrecognized maps to JobUnknown.
func ParseJobStatus(raw string) JobStatus {
	s := JobStatus(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-"))
	if _, ok := knownStatuses[s]; ok {
		return s
	}
	return JobUnknown
}

// JobStatus maps the quiz generation state onto the shared job vocabulary.
func (s QuizStatus) JobStatus() JobStatus {
	return ParseJobStatus(string(s))
}
