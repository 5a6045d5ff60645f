package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeSweepLeases = "lease:sweep"
	TypeRenewLease  = "lease:renew"
)

// Lease tasks never retry: a failed renewal waits for the next sweep.
const taskTimeout = 2 * time.Minute

func NewSweepLeasesTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeSweepLeases, nil, asynq.MaxRetry(0), asynq.Timeout(taskTimeout)), nil
}

type RenewLeaseTaskPayload struct {
	Identity string
}

func NewRenewLeaseTask(identity string) (*asynq.Task, error) {
	payload, err := json.Marshal(RenewLeaseTaskPayload{Identity: identity})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRenewLease, payload, asynq.MaxRetry(0), asynq.Timeout(taskTimeout)), nil
}

func ParseRenewLeasePayload(t *asynq.Task) (RenewLeaseTaskPayload, error) {
	var p RenewLeaseTaskPayload
	err := json.Unmarshal(t.Payload(), &p)
	return p, err
}
