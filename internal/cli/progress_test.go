package cli

import (
	"bytes"
	"testing"
	"time"

	"devservices/internal/orchestrator"
	"devservices/internal/state"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Quiet(t *testing.T) {
	var buf bytes.Buffer
	events := make(chan orchestrator.StateChangedEvent, 1)

	p := StartProgress(&buf, "Starting sentry", events, true)
	p.Stop("done")
	assert.Empty(t, buf.String())
}

func TestProgress_FollowsEvents(t *testing.T) {
	var buf bytes.Buffer
	events := make(chan orchestrator.StateChangedEvent, 1)

	p := StartProgress(&buf, "Starting sentry", events, false)
	events <- orchestrator.StateChangedEvent{Name: "redis", NewState: state.StatusStarting}

	assert.Eventually(t, func() bool {
		p.s.Lock()
		defer p.s.Unlock()
		return p.s.Suffix == " Starting sentry: redis is starting"
	}, time.Second, 5*time.Millisecond)
	p.Stop("")
}
