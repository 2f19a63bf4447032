package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipelineErrorMessage(t *testing.T) {
	err := NewNetwork("lidl", "download leaflet", stderrors.New("timeout"))
	assert.Equal(t, "[network] lidl: download leaflet - timeout", err.Error())

	err = NewRateLimit("iki", 5*time.Minute)
	assert.Equal(t, "[rate_limit] iki: rate limited for 5m0s", err.Error())

	err = NewPersistence("upsert offers", nil)
	assert.Equal(t, "[persistence] upsert offers", err.Error())
}

func TestStageOf(t *testing.T) {
	assert.Equal(t, StageAcquire, StageOf(NewAcquisition("query", nil)))
	assert.Equal(t, StageCollect, StageOf(NewParsing("rimi", "empty", nil)))
	assert.Equal(t, StagePersist, StageOf(fmt.Errorf("commit: %w", NewPersistence("upsert", nil))))
	assert.Equal(t, StageFinish, StageOf(NewLifecycle("record", nil)))
	assert.Equal(t, StageCollect, StageOf(NewInterrupted("stopped", nil)))
	assert.Equal(t, StageWorker, StageOf(stderrors.New("boom")))
}

func TestIsLocal(t *testing.T) {
	assert.True(t, NewNetwork("lidl", "x", nil).IsLocal())
	assert.True(t, NewExtraction("lidl", "x", nil).IsLocal())
	assert.False(t, NewPersistence("x", nil).IsLocal())
	assert.False(t, NewConfiguration("x", nil).IsLocal())
	assert.False(t, NewInterrupted("x", nil).IsLocal())
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("wrapped: %w", NewPersistence("upsert", cause))
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsType(err, ErrorTypePersistence))
	assert.False(t, IsType(err, ErrorTypeNetwork))
}
