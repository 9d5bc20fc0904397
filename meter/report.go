package meter

import (
	jsoniter "github.com/json-iterator/go"
)

// ReportTopic is the pubsub topic on which throughput reports are shared
// between components and peer instances.
const ReportTopic = "meter_reports"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report is one throughput measurement for a stream. It covers the window
// between the previous report (or stream start) and now.
type Report struct {
	// Stream is the name of the measured stream.
	Stream string `json:"stream"`
	// Host identifies the instance that produced the report. It is filled in
	// by the pubsub sink so that peers can tell reports apart.
	Host string `json:"host,omitempty"`
	// Throughput is the measured rate in tuples per second.
	Throughput float64 `json:"throughput"`
	// TupleCount is the number of tuples seen during the window.
	TupleCount uint64 `json:"tuple_count"`
	// CheckCount is the number of timing checks performed during the window.
	CheckCount uint64 `json:"check_count"`
	// ElapsedSeconds is the wall-clock length of the window.
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func (r Report) MarshalString() (string, error) {
	return json.MarshalToString(r)
}

func UnmarshalReport(msg string) (Report, error) {
	var r Report
	err := json.UnmarshalFromString(msg, &r)
	return r, err
}
