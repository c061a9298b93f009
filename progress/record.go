package progress

import (
	"encoding/json"
	"fmt"
)

type Status string

const (
	StatusInit       Status = "init"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
)

// Record is the snapshot of an upload's transfer progress that external pollers read from a Store.
type Record struct {
	Total        int64  `json:"total"`
	Loaded       int64  `json:"loaded"`
	Status       Status `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Percent is Loaded as a truncated percentage of Total, or 0 while Total is unknown. An error record keeps the
// counts it failed at but reports 0, so a retry under the same id is tracked from scratch.
func (r Record) Percent() int64 {
	if r.Status == StatusError {
		return 0
	}
	return percent(r.Loaded, r.Total)
}

func (r Record) String() string {
	if r.Status == StatusError {
		return fmt.Sprintf("Record{Status:%q, ErrorMessage:%q}", r.Status, r.ErrorMessage)
	}
	return fmt.Sprintf("Record{Status:%q, Loaded:%d, Total:%d}", r.Status, r.Loaded, r.Total)
}

func ErrorRecord(total, loaded int64, err error) Record {
	return Record{
		Total:        total,
		Loaded:       loaded,
		Status:       StatusError,
		ErrorMessage: err.Error(),
	}
}

func (r Record) Encode() (string, error) {
	if data, err := json.Marshal(r); err != nil {
		return "", err
	} else {
		return string(data), nil
	}
}

func Decode(s string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return Record{}, fmt.Errorf("invalid progress record: %w", err)
	}
	return r, nil
}

func percent(loaded, total int64) int64 {
	if total <= 0 {
		return 0
	}
	return loaded * 100 / total
}
