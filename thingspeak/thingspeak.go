// Package thingspeak uploads readings to the ThingSpeak channel update API.
//
// https://www.mathworks.com/help/thingspeak/writedata.html
//
// An update is a GET (or POST) to /update with the channel write key and up to 8 fields.
// The response body is the new entry id, or 0 when the update was refused (most often
// because the channel was written less than 15 seconds ago).
//
//	field1	temperature		C
//	field2	humidity		%RH
//	field3	pressure		hPa
//	field4	battery			V
package thingspeak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-querystring/query"
	"github.com/gr-butler/weathernode/data"
	logger "github.com/sirupsen/logrus"
)

var (
	// ErrRejected is returned when ThingSpeak answers with entry 0.
	ErrRejected = errors.New("update rejected by ThingSpeak")
)

type update struct {
	APIKey    string   `url:"api_key"`
	CreatedAt string   `url:"created_at,omitempty"`
	Field1    *float64 `url:"field1,omitempty"`
	Field2    *float64 `url:"field2,omitempty"`
	Field3    *float64 `url:"field3,omitempty"`
	Field4    *float64 `url:"field4,omitempty"`
}

type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
	maxRetries uint64
	retryWait  time.Duration
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithBaseURL overrides the URL built from host and port.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryInterval sets the first backoff wait, later waits grow from it.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

func New(host string, port int, key string, opts ...Option) *Client {
	c := &Client{
		baseURL:    BaseURL(host, port),
		key:        key,
		httpClient: &http.Client{Timeout: time.Second * 10},
		maxRetries: 3,
		retryWait:  time.Millisecond * 500,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL picks the scheme from the port, 443 is HTTPS and everything else plain HTTP.
func BaseURL(host string, port int) string {
	switch port {
	case 80:
		return "http://" + urlHost(host)
	case 443:
		return "https://" + urlHost(host)
	default:
		return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	}
}

// urlHost brackets IPv6 literals.
func urlHost(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// Update sends one reading and returns the ThingSpeak entry id. Transport errors and 5xx
// answers are retried with exponential backoff until ctx expires, a refused update is not.
func (c *Client) Update(ctx context.Context, r data.Reading) (int, error) {
	u := c.encode(r)
	vals, err := query.Values(u)
	if err != nil {
		return 0, fmt.Errorf("encoding update: %w", err)
	}
	target := c.baseURL + "/update?" + vals.Encode()

	var entry int
	attempt := 0
	op := func() error {
		attempt++
		id, err := c.send(ctx, target)
		if err != nil {
			logger.Warnf("ThingSpeak update attempt [%v] failed [%v]", attempt, err)
			return err
		}
		entry = id
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryWait
	bo.MaxElapsedTime = 0 // bounded by ctx
	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
	if err != nil {
		return 0, err
	}
	logger.Infof("ThingSpeak entry [%v]", entry)
	return entry, nil
}

func (c *Client) send(ctx context.Context, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return 0, err
	}
	switch {
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("ThingSpeak HTTP [%v]", resp.Status)
	case resp.StatusCode != http.StatusOK:
		// bad key or channel, retrying will not help
		return 0, backoff.Permanent(fmt.Errorf("ThingSpeak HTTP [%v]", resp.Status))
	}

	id, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("unexpected ThingSpeak response [%q]", body))
	}
	if id == 0 {
		return 0, backoff.Permanent(ErrRejected)
	}
	return id, nil
}

func (c *Client) encode(r data.Reading) *update {
	u := &update{
		APIKey: c.key,
		Field1: ptr(r.TemperatureC),
		Field2: ptr(r.Humidity),
		Field3: ptr(r.PressurehPa),
	}
	if !r.Time.IsZero() {
		u.CreatedAt = r.Time.UTC().Format(time.RFC3339)
	}
	if r.HasBattery {
		u.Field4 = ptr(r.BatteryVolts())
	}
	return u
}

func ptr(v float64) *float64 { return &v }
