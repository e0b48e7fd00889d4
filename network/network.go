package network

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"
)

// WaitOnline blocks until a TCP connection to host:port succeeds, retrying every interval.
// The OS owns the WiFi association; ssid is only reported while waiting.
func WaitOnline(ctx context.Context, ssid, host string, port int, interval time.Duration) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: interval}
	start := time.Now()
	for attempt := 1; ; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
			logger.Infof("Network up [%v] after [%v]", ssid, time.Since(start).Round(time.Millisecond))
			return nil
		}
		logger.Infof("Waiting for network [%v] attempt [%v] [%v]", ssid, attempt, err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("no route to [%v] on [%v]: %w", addr, ssid, ctx.Err())
		case <-time.After(interval):
		}
	}
}
