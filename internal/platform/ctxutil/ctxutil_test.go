package ctxutil

import (
	"context"
	"testing"
	"time"
)

func TestDetachKeepsValuesDropsCancel(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Minute)
	parent = WithTraceData(parent, &TraceData{TraceID: "t1", RequestID: "r1"})
	parent = WithRequestData(parent, &RequestData{Username: "jane"})

	detached := Detach(parent)
	cancel()

	if parent.Err() == nil {
		t.Fatalf("parent should be cancelled")
	}
	if detached.Err() != nil {
		t.Fatalf("detached context inherited cancellation: %v", detached.Err())
	}
	if _, ok := detached.Deadline(); ok {
		t.Fatalf("detached context inherited a deadline")
	}
	if td := GetTraceData(detached); td == nil || td.TraceID != "t1" || td.RequestID != "r1" {
		t.Fatalf("trace data not carried: %+v", td)
	}
	if rd := GetRequestData(detached); rd == nil || rd.Username != "jane" {
		t.Fatalf("request data not carried: %+v", rd)
	}
}

func TestDetachNil(t *testing.T) {
	var nilCtx context.Context
	if Detach(nilCtx) == nil {
		t.Fatalf("expected background context")
	}
}
