package workflow

import (
	"attune/internal/queue"
	"attune/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Fetcher   stage.Handler
	Converter stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

func deriveStageLabel(status queue.Status) string {
	switch status {
	case queue.StatusFetching:
		return "Fetching"
	case queue.StatusConverting:
		return "Converting"
	case queue.StatusCompleted:
		return "Completed"
	case queue.StatusFailed:
		return "Failed"
	default:
		return string(status)
	}
}
