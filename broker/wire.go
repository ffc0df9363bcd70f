package broker

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// Logical namespace sent with every request. The broker multiplexes several
// data models behind one endpoint; this adapter always addresses the vehicle
// signal one.
const thingNamespace = "vss"

// Fully-qualified gRPC method names for the three broker operations.
const (
	methodGetReport    = "/shadow.v1.ShadowService/GetReport"
	methodListenReport = "/shadow.v1.ShadowService/ListenReport"
	methodCreateJob    = "/shadow.v1.JobService/CreateJob"
)

// GetReportRequest is a point read of a single slash-delimited wire path.
type GetReportRequest struct {
	Thing string `json:"thing"`
	Path  string `json:"path"`
}

// GetReportResponse carries the value at the requested path. The item may be
// a bare scalar or a nested struct keyed by remaining path segments.
type GetReportResponse struct {
	Item *structpb.Value `json:"item,omitempty"`
}

// CreateJobRequest submits a command document for execution. Writes are
// expressed as a job with fields {action: "set", target: <dot-path>,
// value: <wire value>}.
type CreateJobRequest struct {
	Thing    string           `json:"thing"`
	Document *structpb.Struct `json:"document"`
}

// CreateJobResponse acknowledges job creation.
type CreateJobResponse struct {
	Item *structpb.Value `json:"item,omitempty"`
}

// ListenReportRequest opens a server stream of updates for the filtered wire
// paths. NeedsInitialValue requests the current value as the first item.
type ListenReportRequest struct {
	Thing             string   `json:"thing"`
	Filters           []string `json:"filters,omitempty"`
	NeedsInitialValue bool     `json:"needs_initial_value"`
}

// ListenReportResponse is one streamed notification. Each item is either a
// bare scalar for the subscribed path or a nested struct keyed by the
// remaining path segments below it.
type ListenReportResponse struct {
	Items *structpb.ListValue `json:"items,omitempty"`
}
