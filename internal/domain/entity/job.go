package entity

import "time"

// JobStatus статус асинхронной проверки
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job — проверка, поставленная в очередь через HTTP.
type Job struct {
	ID          string         `json:"id"`
	Status      JobStatus      `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	DefectCount int            `json:"defect_count"`
	Regions     []DefectRegion `json:"regions,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	Annotated   []byte         `json:"annotated,omitempty"` // JPEG
}

// NewJob создаёт задание в статусе pending.
func NewJob(id string, now time.Time) *Job {
	return &Job{ID: id, Status: JobPending, CreatedAt: now}
}

// Complete фиксирует успешный результат.
func (j *Job) Complete(report *DefectReport, summary string, annotated []byte, now time.Time) {
	j.Status = JobDone
	j.FinishedAt = &now
	j.DefectCount = report.DefectCount
	j.Regions = report.Regions
	j.Summary = summary
	j.Annotated = annotated
}

// Fail фиксирует ошибку конвейера.
func (j *Job) Fail(err error, now time.Time) {
	j.Status = JobFailed
	j.FinishedAt = &now
	j.Error = err.Error()
	j.ErrorKind = ErrorKind(err)
}

// Finished сообщает, что задание больше не изменится.
func (j *Job) Finished() bool {
	return j.Status == JobDone || j.Status == JobFailed
}
