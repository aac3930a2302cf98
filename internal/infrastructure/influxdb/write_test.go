package influxdb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-node/internal/sensor"
)

type fakeWriter struct {
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) { f.points = append(f.points, p) }
func (f *fakeWriter) Flush()                    { f.flushes++ }

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	c := newClient(w, "node-001")
	c.now = func() time.Time { return fixedTime }
	return c, w
}

func TestReadingPoint_LineProtocol(t *testing.T) {
	r := sensor.Reading{SensorKind: "DS18B20", Location: "Outdoor", ID: "temp_28ff", Value: 21.44, Unit: "C"}

	got := write.PointToLineProtocol(readingPoint("node-001", r, fixedTime), time.Second)
	want := "sensor_readings,location=Outdoor,node_id=node-001,sensor_id=temp_28ff,sensor_kind=DS18B20,unit=C value=21.44 1772366400\n"
	if got != want {
		t.Errorf("line protocol = %q, want %q", got, want)
	}
}

func TestReadingPoint_OmitsEmptyTags(t *testing.T) {
	r := sensor.Reading{SensorKind: "Modbus", ID: "m_flow", Value: 3}

	got := write.PointToLineProtocol(readingPoint("node-001", r, fixedTime), time.Second)
	if strings.Contains(got, "location=") || strings.Contains(got, "unit=") {
		t.Errorf("line protocol %q contains empty tags", got)
	}
}

func TestWriteReading(t *testing.T) {
	c, w := newTestClient()

	if err := c.WriteReading(sensor.Reading{ID: "temp_a", Value: 1}); err != nil {
		t.Fatalf("WriteReading() error = %v", err)
	}
	if len(w.points) != 1 || w.points[0].Name() != measurementReadings {
		t.Errorf("points = %v, want one %s point", w.points, measurementReadings)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("Close() flushed %d times, want 1", w.flushes)
	}

	if err := c.WriteReading(sensor.Reading{ID: "temp_b"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("WriteReading() after Close() error = %v, want ErrNotConnected", err)
	}
	if len(w.points) != 1 {
		t.Error("WriteReading() after Close() queued a point")
	}
}

func TestWriteCycle(t *testing.T) {
	c, w := newTestClient()

	if err := c.WriteCycle("c-1", 3, 1, 1500*time.Millisecond); err != nil {
		t.Fatalf("WriteCycle() error = %v", err)
	}

	got := write.PointToLineProtocol(w.points[0], time.Second)
	want := `node_cycles,node_id=node-001 cycle_id="c-1",duration_ms=1500i,publish_failures=1i,readings=3i 1772366400` + "\n"
	if got != want {
		t.Errorf("line protocol = %q, want %q", got, want)
	}
}

func TestFlush_AfterClose(t *testing.T) {
	c, w := newTestClient()
	c.Flush()
	_ = c.Close()
	c.Flush()

	if w.flushes != 2 {
		t.Errorf("flushes = %d, want 2 (one Flush, one Close)", w.flushes)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c, _ := newTestClient()

	var got []error
	c.SetOnError(func(err error) { got = append(got, err) })

	ch := make(chan error, 2)
	ch <- errors.New("401 unauthorized")
	ch <- errors.New("timeout")
	close(ch)
	c.handleWriteErrors(ch)

	if len(got) != 2 {
		t.Fatalf("callback invoked %d times, want 2", len(got))
	}
	if !errors.Is(got[0], ErrWriteFailed) {
		t.Errorf("callback error = %v, want ErrWriteFailed", got[0])
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c, _ := newTestClient()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() without server error = %v, want ErrNotConnected", err)
	}
}
