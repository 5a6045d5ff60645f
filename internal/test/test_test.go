package test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

func TestMockTaskEnqueuerConcurrentUse(t *testing.T) {
	m := &MockTaskEnqueuer{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.EnqueueContext(context.Background(), asynq.NewTask("lease:renew", nil))
		}()
		go func(i int) {
			defer wg.Done()
			if i == 10 {
				m.SetErr(errors.New("redis down"))
			}
		}(i)
	}
	wg.Wait()

	_, err := m.EnqueueContext(context.Background(), asynq.NewTask("lease:renew", nil))
	assert.EqualError(t, err, "redis down")
	assert.LessOrEqual(t, len(m.Tasks()), 20)
}
