package sink

import (
	"context"
	"fmt"

	"github.com/gr-butler/weathernode/config"
	"github.com/gr-butler/weathernode/data"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const measurement = "weather"

type Influx struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	tags   map[string]string
}

func NewInflux(cfg config.InfluxSink, tags map[string]string) *Influx {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		tags:   tags,
	}
}

func (i *Influx) Name() string { return "influx" }

func (i *Influx) Publish(ctx context.Context, r data.Reading) error {
	fields := map[string]interface{}{
		"temperature": r.TemperatureC,
		"humidity":    r.Humidity,
		"pressure":    r.PressurehPa,
	}
	if r.HasBattery {
		fields["battery_mv"] = r.BatteryMV
	}
	point := influxdb2.NewPoint(measurement, i.tags, fields, r.Time)
	if err := i.write.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("writing point: %w", err)
	}
	return nil
}

func (i *Influx) Close() error {
	i.client.Close()
	return nil
}
