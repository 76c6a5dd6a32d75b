package worker

import (
	"context"

	"github.com/jwalitptl/lifepulse/internal/model"
)

// Submitter delivers one request to the remote service. Implementations own
// the call timeout; an unbounded Submit stalls the whole pass.
type Submitter interface {
	Submit(ctx context.Context, req *model.EmergencyRequest) error
}

type SubmitterFunc func(ctx context.Context, req *model.EmergencyRequest) error

func (f SubmitterFunc) Submit(ctx context.Context, req *model.EmergencyRequest) error {
	return f(ctx, req)
}
