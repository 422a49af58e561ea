package fog

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-fog-pipeline/internal/data"
)

type fakeCloud struct {
	token      string
	expiry     time.Time
	loginErr   error
	loginCalls int

	forwardErr   error
	forwarded    []data.AggregatedRecord
	forwardToken string
}

func (f *fakeCloud) Login() (string, time.Time, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return "", time.Time{}, f.loginErr
	}
	return f.token, f.expiry, nil
}

func (f *fakeCloud) Forward(token string, record data.AggregatedRecord) error {
	f.forwardToken = token
	if f.forwardErr != nil {
		return f.forwardErr
	}
	f.forwarded = append(f.forwarded, record)
	return nil
}

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func testConfig() Config {
	return Config{
		Region:              "south_zone",
		AggregationInterval: 30 * time.Second,
		BufferCapacity:      100,
		TokenRenewalMargin:  300 * time.Second,
		ActuatorTopic:       "actuator/control",
		RegionalHeat:        37,
		VibrationMean:       7,
		VibrationWindow:     5,
		VibrationMinCount:   3,
	}
}

func newTestNode(cloud *fakeCloud, publisher *fakePublisher) *Node {
	return NewNode(testConfig(), cloud, publisher, zerolog.Nop())
}

func sensorMsg(temperature, vibration float64, presence int) []byte {
	return []byte(fmt.Sprintf(`{"temperature":%g,"vibration":%g,"presence":%d}`, temperature, vibration, presence))
}

func TestHandleMessageBuffersReading(t *testing.T) {
	node := newTestNode(&fakeCloud{}, &fakePublisher{})

	node.HandleMessage("sensors/data", sensorMsg(25, 2, 1))
	node.HandleMessage("sensors/data", sensorMsg(26, 3, 0))

	assert.Equal(t, 2, node.BufferLen())
}

func TestHandleMessageDropsMalformed(t *testing.T) {
	node := newTestNode(&fakeCloud{}, &fakePublisher{})

	node.HandleMessage("sensors/data", []byte(`not json`))

	assert.Equal(t, 0, node.BufferLen(), "malformed message never reaches the buffer")
}

func TestBufferEvictsOldestBeyondCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.BufferCapacity = 3
	node := NewNode(cfg, &fakeCloud{}, &fakePublisher{}, zerolog.Nop())

	for i := 0; i < 5; i++ {
		node.HandleMessage("sensors/data", sensorMsg(float64(20+i), 0, 0))
	}

	assert.Equal(t, 3, node.BufferLen())
	record := node.Aggregate()
	assert.Equal(t, 22.0, record.MinTemperature, "oldest readings evicted")
	assert.Equal(t, 24.0, record.MaxTemperature)
}

func TestLocalAnalysisHeatWarning(t *testing.T) {
	t.Run("above threshold commands the cooler", func(t *testing.T) {
		publisher := &fakePublisher{}
		node := newTestNode(&fakeCloud{}, publisher)

		node.HandleMessage("sensors/data", sensorMsg(37.5, 0, 0))

		require.Len(t, publisher.topics, 1)
		assert.Equal(t, "actuator/control", publisher.topics[0])
		assert.JSONEq(t, `{"cooler":1}`, string(publisher.payloads[0]))
	})

	t.Run("below threshold stays quiet", func(t *testing.T) {
		publisher := &fakePublisher{}
		node := newTestNode(&fakeCloud{}, publisher)

		node.HandleMessage("sensors/data", sensorMsg(30, 0, 0))

		assert.Empty(t, publisher.topics)
	})

	t.Run("publish failure is non-fatal", func(t *testing.T) {
		publisher := &fakePublisher{err: errors.New("broker down")}
		node := newTestNode(&fakeCloud{}, publisher)

		node.HandleMessage("sensors/data", sensorMsg(38, 0, 0))

		assert.Equal(t, 1, node.BufferLen(), "reading still buffered")
	})
}

func TestLocalAnalysisVibrationWarning(t *testing.T) {
	t.Run("sustained vibration across readings warns", func(t *testing.T) {
		var buf bytes.Buffer
		node := NewNode(testConfig(), &fakeCloud{}, &fakePublisher{}, zerolog.New(&buf))

		node.HandleMessage("sensors/data", sensorMsg(25, 8, 0))
		node.HandleMessage("sensors/data", sensorMsg(25, 9, 0))
		node.HandleMessage("sensors/data", sensorMsg(25, 8.5, 0))

		assert.Contains(t, buf.String(), "excessive vibration")
	})

	t.Run("too few vibration readings stay quiet", func(t *testing.T) {
		var buf bytes.Buffer
		node := NewNode(testConfig(), &fakeCloud{}, &fakePublisher{}, zerolog.New(&buf))

		node.HandleMessage("sensors/data", sensorMsg(25, 9, 0))
		node.HandleMessage("sensors/data", sensorMsg(25, 9, 0))

		assert.NotContains(t, buf.String(), "excessive vibration")
	})

	t.Run("low mean stays quiet", func(t *testing.T) {
		var buf bytes.Buffer
		node := NewNode(testConfig(), &fakeCloud{}, &fakePublisher{}, zerolog.New(&buf))

		for i := 0; i < 5; i++ {
			node.HandleMessage("sensors/data", sensorMsg(25, 2, 0))
		}

		assert.NotContains(t, buf.String(), "excessive vibration")
	})
}

func TestAggregateStatistics(t *testing.T) {
	node := newTestNode(&fakeCloud{}, &fakePublisher{})

	node.HandleMessage("sensors/data", sensorMsg(20, 2, 1))
	node.HandleMessage("sensors/data", sensorMsg(30, 4, 0))
	node.HandleMessage("sensors/data", sensorMsg(25, 6, 1))

	record := node.Aggregate()

	assert.InDelta(t, 25, record.AvgTemperature, 1e-9)
	assert.Equal(t, 30.0, record.MaxTemperature)
	assert.Equal(t, 20.0, record.MinTemperature)
	assert.InDelta(t, 4, record.AvgVibration, 1e-9)
	assert.Equal(t, 2, record.PresenceCount)
	assert.Equal(t, 3, record.SamplesCount)
	assert.Equal(t, "south_zone", record.Region)
	assert.False(t, record.Timestamp.IsZero())
}

func TestAggregateSkipsAbsentFields(t *testing.T) {
	node := newTestNode(&fakeCloud{}, &fakePublisher{})

	node.HandleMessage("sensors/data", []byte(`{"temperature":22}`))
	node.HandleMessage("sensors/data", []byte(`{"vibration":5}`))

	record := node.Aggregate()

	assert.Equal(t, 22.0, record.AvgTemperature, "mean over present temperatures only")
	assert.Equal(t, 5.0, record.AvgVibration)
	assert.Equal(t, 0, record.PresenceCount)
	assert.Equal(t, 2, record.SamplesCount)
}

func TestForwardCycleSuccessClearsBuffer(t *testing.T) {
	cloud := &fakeCloud{token: "tok", expiry: time.Now().Add(24 * time.Hour)}
	node := newTestNode(cloud, &fakePublisher{})

	node.HandleMessage("sensors/data", sensorMsg(25, 1, 1))
	node.ForwardCycle()

	require.Len(t, cloud.forwarded, 1)
	assert.Equal(t, "tok", cloud.forwardToken)
	assert.Equal(t, 0, node.BufferLen(), "buffer cleared only on success")
}

func TestForwardCycleFailureRetainsBuffer(t *testing.T) {
	cloud := &fakeCloud{
		token:      "tok",
		expiry:     time.Now().Add(24 * time.Hour),
		forwardErr: fmt.Errorf("%w: connection refused", ErrForwardFailed),
	}
	node := newTestNode(cloud, &fakePublisher{})

	node.HandleMessage("sensors/data", sensorMsg(25, 1, 1))
	node.HandleMessage("sensors/data", sensorMsg(26, 1, 0))
	node.ForwardCycle()

	assert.Equal(t, 2, node.BufferLen(), "buffer retained for next cycle")
	assert.Equal(t, "tok", node.token, "token kept on plain failure")
}

func TestForwardCycleUnauthorizedDropsToken(t *testing.T) {
	cloud := &fakeCloud{
		token:      "stale",
		expiry:     time.Now().Add(24 * time.Hour),
		forwardErr: ErrUnauthorized,
	}
	node := newTestNode(cloud, &fakePublisher{})

	node.HandleMessage("sensors/data", sensorMsg(25, 1, 1))
	node.ForwardCycle()

	assert.Equal(t, 1, node.BufferLen(), "buffer retained")
	assert.Empty(t, node.token, "token discarded, forcing re-auth next cycle")
}

func TestForwardCycleAuthFailureAborts(t *testing.T) {
	cloud := &fakeCloud{loginErr: ErrUnauthorized}
	node := newTestNode(cloud, &fakePublisher{})

	node.HandleMessage("sensors/data", sensorMsg(25, 1, 1))
	node.ForwardCycle()

	assert.Empty(t, cloud.forwarded, "forward aborted without a token")
	assert.Equal(t, 1, node.BufferLen())
}

func TestForwardCycleSkipsEmptyBuffer(t *testing.T) {
	cloud := &fakeCloud{token: "tok", expiry: time.Now().Add(24 * time.Hour)}
	node := newTestNode(cloud, &fakePublisher{})

	node.ForwardCycle()

	assert.Zero(t, cloud.loginCalls, "no authentication on an empty cycle")
	assert.Empty(t, cloud.forwarded)
}

func TestEnsureTokenRenewalMargin(t *testing.T) {
	cloud := &fakeCloud{token: "fresh", expiry: time.Now().Add(24 * time.Hour)}
	node := newTestNode(cloud, &fakePublisher{})

	// Held token expires within the 300s margin: must renew.
	node.token = "expiring"
	node.tokenExpiry = time.Now().Add(60 * time.Second)

	require.NoError(t, node.ensureToken())
	assert.Equal(t, 1, cloud.loginCalls)
	assert.Equal(t, "fresh", node.token)

	// Fresh token outside the margin: no renewal.
	require.NoError(t, node.ensureToken())
	assert.Equal(t, 1, cloud.loginCalls)
}
