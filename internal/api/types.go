package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueJob describes a conversion job in a transport-friendly format.
type QueueJob struct {
	ID            int64         `json:"id"`
	Token         string        `json:"token"`
	SourceURL     string        `json:"sourceUrl"`
	Title         string        `json:"title,omitempty"`
	Status        string        `json:"status"`
	Progress      QueueProgress `json:"progress"`
	ErrorMessage  string        `json:"errorMessage,omitempty"`
	OriginalFile  string        `json:"originalFile,omitempty"`
	ConvertedFile string        `json:"convertedFile,omitempty"`
	CreatedAt     string        `json:"createdAt,omitempty"`
	UpdatedAt     string        `json:"updatedAt,omitempty"`
}

// QueueProgress captures stage progress information for a conversion job.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *QueueJob      `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DiskUsage reports free space on the filesystem backing the work directory.
type DiskUsage struct {
	TotalBytes uint64  `json:"totalBytes"`
	FreeBytes  uint64  `json:"freeBytes"`
	FreeRatio  float64 `json:"freeRatio"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
	WorkDirUsage *DiskUsage         `json:"workDirUsage,omitempty"`
}

// ConvertRequest is the body accepted by the synchronous convert endpoint.
type ConvertRequest struct {
	YoutubeURL string `json:"youtubeUrl"`
}

// ConvertResponse reports the outcome of a synchronous conversion.
type ConvertResponse struct {
	Success     bool   `json:"success"`
	FileID      string `json:"fileId,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	ShareURL    string `json:"shareUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ShareResponse carries the public link for a completed conversion.
type ShareResponse struct {
	Success  bool   `json:"success"`
	ShareURL string `json:"shareUrl"`
}

// ErrorResponse is the JSON envelope returned for failed requests.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of conversion jobs for API responses.
type QueueListResponse struct {
	Jobs []QueueJob `json:"jobs"`
}

// QueueJobResponse wraps a single conversion job.
type QueueJobResponse struct {
	Job QueueJob `json:"job"`
}

// QueueMutationResponse reports how many jobs an administrative action touched.
type QueueMutationResponse struct {
	Affected int64 `json:"affected"`
}

// QueueHealthSummary aggregates queue counts per lifecycle bucket.
type QueueHealthSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
}

// DatabaseHealth reports queue database diagnostics.
type DatabaseHealth struct {
	DBPath           string   `json:"dbPath"`
	DatabaseExists   bool     `json:"databaseExists"`
	DatabaseReadable bool     `json:"databaseReadable"`
	SchemaVersion    string   `json:"schemaVersion"`
	TableExists      bool     `json:"tableExists"`
	ColumnsPresent   []string `json:"columnsPresent,omitempty"`
	MissingColumns   []string `json:"missingColumns,omitempty"`
	IntegrityCheck   bool     `json:"integrityCheck"`
	TotalJobs        int      `json:"totalJobs"`
	Error            string   `json:"error,omitempty"`
}

// QueueHealthResponse combines the count summary with database diagnostics.
type QueueHealthResponse struct {
	Summary  QueueHealthSummary `json:"summary"`
	Database DatabaseHealth     `json:"database"`
}

// NotificationTestResponse reports the outcome of a test notification.
type NotificationTestResponse struct {
	Success bool   `json:"success"`
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}
