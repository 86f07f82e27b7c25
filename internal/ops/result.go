// Package ops implements the graph operations: field checks, id allocation,
// the per-operation handlers and the transactional dispatcher around them.
package ops

import (
	"fmt"

	"graf/internal/model"
)

// Status is the numeric outcome of an operation.
type Status int

const (
	StatusOK           Status = 0
	StatusNoAction     Status = 1
	StatusUnsupported  Status = 2
	StatusMissingField Status = 3
	StatusInvalidField Status = 4
	StatusInternal     Status = 5
	StatusDuplicate    Status = 6
	StatusNotFound     Status = 7
	StatusSameNode     Status = 8
	StatusHasEdges     Status = 9
)

var statusNames = map[Status]string{
	StatusOK:           "ok",
	StatusNoAction:     "no_action",
	StatusUnsupported:  "unsupported",
	StatusMissingField: "missing_field",
	StatusInvalidField: "invalid_field",
	StatusInternal:     "internal",
	StatusDuplicate:    "duplicate",
	StatusNotFound:     "not_found",
	StatusSameNode:     "same_node",
	StatusHasEdges:     "has_edges",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Params is the echo of what an operation acted on. Only the fields the
// operation touched are set.
type Params struct {
	ID   *int64  `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
	X    *int64  `json:"x,omitempty"`
	Y    *int64  `json:"y,omitempty"`
	Year *int64  `json:"year,omitempty"`
	Sex  *string `json:"sex,omitempty"`
	A    *int64  `json:"a,omitempty"`
	B    *int64  `json:"b,omitempty"`
}

// Result is the single response produced for every request.
type Result struct {
	Status Status       `json:"status"`
	Action string       `json:"action,omitempty"`
	Msg    string       `json:"msg,omitempty"`
	Par    *Params      `json:"par,omitempty"`
	Data   *model.Graph `json:"data,omitempty"`
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Request holds the named string fields of one call. A key that is present
// counts as set, even when its value is empty.
type Request map[string]string

// Action returns the requested operation name exactly as sent, or "" when
// none was given.
func (r Request) Action() string {
	return r["action"]
}

// Has reports whether field is set.
func (r Request) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// firstMissing returns the first of fields that is not set.
func (r Request) firstMissing(fields ...string) (string, bool) {
	for _, f := range fields {
		if !r.Has(f) {
			return f, true
		}
	}
	return "", false
}

func failure(status Status, msg string) Result {
	return Result{Status: status, Msg: msg}
}

func missingField(field string) Result {
	return failure(StatusMissingField, field+" is not set in the request and is a mandatory parameter")
}

func i64(v int64) *int64 { return &v }

func str(v string) *string { return &v }
