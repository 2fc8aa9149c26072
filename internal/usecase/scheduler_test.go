package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type driverStub struct {
	started, stopped bool
}

func (d *driverStub) Start(ctx context.Context, job func(time.Time)) error {
	d.started = true
	job(time.Now())
	job(time.Now())
	return nil
}

func (d *driverStub) Stop(ctx context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsPipelinePerTrigger(t *testing.T) {
	t.Parallel()

	f := newFixture()
	driver := &driverStub{}
	s := NewScheduler(driver, f.pipeline(t), discardLogger())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	assert.True(t, driver.started)
	assert.True(t, driver.stopped)
	assert.Len(t, f.repository.saved, 2)
}

func TestSchedulerWithoutDriverIsNoop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
