package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	measurement    = "sensor_data"
	connectTimeout = 10 * time.Second
)

var (
	// ErrDisabled is returned by queries when telemetry history is switched off
	ErrDisabled = errors.New("telemetry history disabled")
	// ErrUnavailable is returned when the InfluxDB server does not answer the ping
	ErrUnavailable = errors.New("telemetry history unavailable")
)

// Config selects the InfluxDB bucket telemetry is written to
type Config struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
}

// Sample is one stored telemetry field
type Sample struct {
	Time  time.Time   `json:"time"`
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// Writer records device telemetry. The zero value is a disabled writer whose
// writes are dropped.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	queryAPI api.QueryAPI
	bucket   string
}

// NewWriter connects to InfluxDB. A disabled config returns a no-op writer.
func NewWriter(ctx context.Context, cfg Config) (*Writer, error) {
	if !cfg.Enabled {
		log.Println("HISTORY: Telemetry history disabled")
		return &Writer{}, nil
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrUnavailable, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrUnavailable)
	}

	w := &Writer{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
	}
	go func() {
		for err := range w.writeAPI.Errors() {
			log.Printf("HISTORY: Write failed: %v", err)
		}
	}()

	log.Printf("HISTORY: Writing telemetry to %s (bucket %s)", cfg.URL, cfg.Bucket)
	return w, nil
}

// Enabled reports whether telemetry is stored
func (w *Writer) Enabled() bool {
	return w.client != nil
}

// WriteTelemetry stores the numeric leaves of data as one point tagged with
// the device topic. Non-blocking; points are batched by the client.
func (w *Writer) WriteTelemetry(deviceTopic string, data map[string]interface{}) {
	if !w.Enabled() {
		return
	}
	fields := Flatten(data)
	if len(fields) == 0 {
		return
	}
	w.writeAPI.WritePoint(write.NewPoint(measurement, map[string]string{"device": deviceTopic}, fields, time.Now()))
}

// Query returns the newest samples of a device within the last since, newest first
func (w *Writer) Query(ctx context.Context, deviceTopic string, since time.Duration, limit int) ([]Sample, error) {
	if !w.Enabled() {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 100
	}

	flux := fmt.Sprintf(`from(bucket: %s)
  |> range(start: -%s)
  |> filter(fn: (r) => r._measurement == %s and r.device == %s)
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)`,
		strconv.Quote(w.bucket), since.String(), strconv.Quote(measurement), strconv.Quote(deviceTopic), limit)

	result, err := w.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", deviceTopic, err)
	}
	defer result.Close()

	var samples []Sample
	for result.Next() {
		rec := result.Record()
		samples = append(samples, Sample{Time: rec.Time(), Field: rec.Field(), Value: rec.Value()})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read history for %s: %w", deviceTopic, err)
	}
	return samples, nil
}

// Close flushes pending points
func (w *Writer) Close() {
	if !w.Enabled() {
		return
	}
	w.writeAPI.Flush()
	w.client.Close()
}

// Flatten collects the numeric leaves of a decoded telemetry document.
// Nested keys are joined with "_", so {"ENERGY": {"Power": 12}} yields
// "ENERGY_Power". Strings, booleans and arrays are skipped.
func Flatten(data map[string]interface{}) map[string]interface{} {
	fields := map[string]interface{}{}
	flatten("", data, fields)
	return fields
}

func flatten(prefix string, data map[string]interface{}, out map[string]interface{}) {
	for k, v := range data {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case float64:
			out[key] = val
		case float32:
			out[key] = float64(val)
		case int:
			out[key] = float64(val)
		case int64:
			out[key] = float64(val)
		}
	}
}
