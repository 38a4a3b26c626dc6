package logsink

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func line(i int) Line {
	return Line{Time: time.Unix(int64(i), 0), Message: fmt.Sprintf("line %d", i)}
}

func TestHistoryWrapsAround(t *testing.T) {
	h := NewHistory(3)

	for i := 1; i <= 5; i++ {
		h.Log(line(i))
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []Line{line(3), line(4), line(5)}, h.Lines(0))
	assert.Equal(t, []Line{line(4), line(5)}, h.Lines(2))
	assert.Equal(t, []Line{line(3), line(4), line(5)}, h.Lines(10))
}

func TestHistoryPartiallyFilled(t *testing.T) {
	h := NewHistory(5)
	assert.Empty(t, h.Lines(0))

	h.Log(line(1))
	h.Log(line(2))

	assert.Equal(t, []Line{line(1), line(2)}, h.Lines(0))
}

func TestHistorySubscribe(t *testing.T) {
	h := NewHistory(10)

	ch, cancel := h.Subscribe(4)

	h.Log(line(1))

	select {
	case got := <-ch:
		assert.Equal(t, line(1), got)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive line")
	}

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Logging after cancel must not panic on the closed channel.
	h.Log(line(2))
}

func TestHistorySlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHistory(10)

	_, cancel := h.Subscribe(1)
	defer cancel()

	done := make(chan struct{})

	go func() {
		for i := 0; i < 5; i++ {
			h.Log(line(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Log blocked on a slow subscriber")
	}
}

func TestLineString(t *testing.T) {
	l := Line{Time: time.Date(2025, 3, 1, 8, 5, 9, 0, time.Local), Message: "probe ok"}
	assert.Equal(t, "[2025-03-01 08:05:09] probe ok", l.String())
}

func TestMultiWithMock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a := NewMockSink(ctrl)
	b := NewMockSink(ctrl)

	l := line(7)

	gomock.InOrder(
		a.EXPECT().Log(l),
		b.EXPECT().Log(l),
	)

	Multi{a, nil, b}.Log(l)
}

func TestLogrusSink(t *testing.T) {
	var buf bytes.Buffer

	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	NewLogrus(logrus.NewEntry(base).WithField("module", "monitor")).Log(line(3))

	require.NotZero(t, buf.Len())
	assert.Contains(t, buf.String(), `"msg":"line 3"`)
	assert.Contains(t, buf.String(), `"module":"monitor"`)
}
