package amqp

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ExportRequestMessage asks the export worker to write one bill report.
// It carries only the job ID; the worker reads the payload from the job
// ledger.
type ExportRequestMessage struct {
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExportRequestMessage(jobID string) *ExportRequestMessage {
	return &ExportRequestMessage{
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

func (m *ExportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportRequestMessageFromJSON(data []byte) (*ExportRequestMessage, error) {
	var msg ExportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.JobID == "" {
		return nil, fmt.Errorf("export request without job_id")
	}
	return &msg, nil
}
