package healthbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 10 * time.Second

// The device takes a while to apply a newly submitted API key before the
// status endpoint reports it as valid.
var advancedAPIApplyDelay = 10 * time.Second

// Client talks to a single Healthbox 3 device over its local HTTP API. A
// Client is not safe for concurrent use; all calls are issued sequentially.
type Client struct {
	host             string
	apiKey           string
	httpClient       *http.Client
	closeClient      bool
	advancedFeatures bool
}

// NewClient creates a client for the device at host. The API key is only
// required for enabling the advanced API. When httpClient is nil a session
// is created lazily on first use and released by Close; a caller-supplied
// session is never closed.
func NewClient(host string, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		host:       host,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Host returns the hostname of the device.
func (c *Client) Host() string {
	return c.host
}

// AdvancedAPIEnabled returns whether the advanced API is enabled.
func (c *Client) AdvancedAPIEnabled() bool {
	return c.advancedFeatures
}

// GetData fetches a full snapshot: the current data payload, followed by
// best-effort enrichment (error count, firmware version, WiFi and fan
// status) and the boost status of every room. Only a failure of the primary
// fetch fails the whole call; enrichment failures are logged and leave the
// snapshot's defaults intact.
func (c *Client) GetData(ctx context.Context) (*Snapshot, error) {
	var data currentData
	if err := c.getJSON(ctx, "/v2/api/data/current", &data); err != nil {
		return nil, err
	}

	snapshot := newSnapshot(data, c.advancedFeatures)

	c.attachErrorCount(ctx, snapshot)
	c.attachCoreData(ctx, snapshot)
	c.attachWifiStatus(ctx, snapshot)
	c.attachFanStatus(ctx, snapshot)

	for _, room := range snapshot.Rooms {
		room.Boost = c.GetRoomBoost(ctx, room.ID)
	}

	return snapshot, nil
}

func (c *Client) attachErrorCount(ctx context.Context, snapshot *Snapshot) {
	var deviceErrors []json.RawMessage
	if err := c.getJSON(ctx, "/v2/device/error", &deviceErrors); err != nil {
		log.Printf("Retrieving device errors failed: %v", err)
		return
	}

	snapshot.ErrorCount = len(deviceErrors)
}

func (c *Client) attachCoreData(ctx context.Context, snapshot *Snapshot) {
	var core coreData
	if err := c.getJSON(ctx, "/renson_core/v2/global", &core); err != nil {
		log.Printf("Retrieving core data failed: %v", err)
		return
	}

	if core.FirmwareVersion != nil {
		snapshot.FirmwareVersion = *core.FirmwareVersion
	}
}

func (c *Client) attachWifiStatus(ctx context.Context, snapshot *Snapshot) {
	var wifi wifiData
	if err := c.getJSON(ctx, "/renson_core/v1/wifi/client/status", &wifi); err != nil {
		log.Printf("Retrieving WiFi status failed: %v", err)
		return
	}

	snapshot.Wifi = WifiStatus{
		Status:             wifi.Status,
		InternetConnection: wifi.InternetConnection,
		SSID:               wifi.SSID,
		ConnectionError:    wifi.ConnectionError,
	}
}

func (c *Client) attachFanStatus(ctx context.Context, snapshot *Snapshot) {
	var fan fanData
	if err := c.getJSON(ctx, "/v2/device/fan", &fan); err != nil {
		log.Printf("Retrieving fan status failed: %v", err)
		return
	}

	snapshot.Fan = FanStatus{
		Voltage:  fan.Voltage,
		Pressure: fan.Pressure,
		Flow:     fan.Flow,
		Power:    fan.Power,
		RPM:      fan.RPM,
	}
}

// StartRoomBoost starts boosting a room at the given level (percent) for
// timeout seconds.
func (c *Client) StartRoomBoost(ctx context.Context, roomID int, level float64, timeout int) error {
	body := map[string]any{"enable": true, "level": level, "timeout": timeout}
	_, err := c.request(ctx, http.MethodPut, fmt.Sprintf("/v2/api/boost/%v", roomID), body)
	return err
}

// StopRoomBoost stops boosting a room.
func (c *Client) StopRoomBoost(ctx context.Context, roomID int) error {
	body := map[string]any{"enable": false}
	_, err := c.request(ctx, http.MethodPut, fmt.Sprintf("/v2/api/boost/%v", roomID), body)
	return err
}

// GetRoomBoost fetches the boost status of a room. Any failure, including a
// payload with missing keys, yields the zero RoomBoost.
func (c *Client) GetRoomBoost(ctx context.Context, roomID int) RoomBoost {
	var boost boostData
	if err := c.getJSON(ctx, fmt.Sprintf("/v2/api/boost/%v", roomID), &boost); err != nil {
		log.Printf("Retrieving boost status for room %v failed: %v", roomID, err)
		return RoomBoost{}
	}

	if boost.Level == nil || boost.Enable == nil || boost.Remaining == nil {
		return RoomBoost{}
	}

	return RoomBoost{
		Level:     boost.Level,
		Enabled:   *boost.Enable,
		Remaining: boost.Remaining,
	}
}

// EnableAdvancedAPIFeatures submits the configured API key to the device and
// waits for it to validate. With preValidate the handshake is skipped when
// the device already reports the key as valid.
func (c *Client) EnableAdvancedAPIFeatures(ctx context.Context, preValidate bool) error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: no API key configured", ErrAuthentication)
	}

	if preValidate {
		valid, err := c.ValidateAdvancedAPIFeatures(ctx)
		if err != nil {
			return err
		}
		if valid {
			return nil
		}
	}

	// The key submission endpoint answers with a plain text body.
	if _, err := c.request(ctx, http.MethodPost, "/v2/api/api_key", c.apiKey); err != nil {
		return err
	}

	select {
	case <-time.After(advancedAPIApplyDelay):
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCommunication, ctx.Err())
	}

	valid, err := c.ValidateAdvancedAPIFeatures(ctx)
	if err != nil {
		return err
	}
	if !valid {
		c.Close()
		return fmt.Errorf("%w: API key rejected by device", ErrAuthentication)
	}

	return nil
}

// ValidateConnectivity checks that the device is reachable and answering.
func (c *Client) ValidateConnectivity(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodGet, "/v2/api/data/current", nil)
	return err
}

// ValidateAdvancedAPIFeatures checks whether the device reports the API key
// as valid and records the result on the client.
func (c *Client) ValidateAdvancedAPIFeatures(ctx context.Context) (bool, error) {
	var status struct {
		State string `json:"state"`
	}
	if err := c.getJSON(ctx, "/v2/api/api_key/status", &status); err != nil {
		return false, err
	}

	if status.State != "valid" {
		return false, nil
	}

	c.advancedFeatures = true
	return true, nil
}

// Close releases the HTTP session, but only if the client created it.
func (c *Client) Close() {
	if c.httpClient != nil && c.closeClient {
		c.httpClient.CloseIdleConnections()
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest any) error {
	data, err := c.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: decode %v: %w", ErrAPI, endpoint, err)
	}

	return nil
}

// request performs one HTTP call against the device. A string body is sent
// as-is, anything else is JSON encoded. The response body is returned raw;
// callers decode it when they expect JSON.
func (c *Client) request(ctx context.Context, method string, endpoint string, body any) ([]byte, error) {
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
		c.closeClient = true
	}

	url := fmt.Sprintf("http://%v%v", c.host, endpoint)

	var payload io.Reader
	var contentType string
	switch data := body.(type) {
	case nil:
	case string:
		payload = strings.NewReader(data)
	default:
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request body: %w", ErrAPI, err)
		}
		payload = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAPI, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %w", ErrCommunication, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrAPI, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %w", ErrCommunication, err)
		}
		return nil, fmt.Errorf("%w: read response: %w", ErrAPI, err)
	}

	// Authentication failures take precedence over the generic status check.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %v", ErrAuthentication, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %v", ErrAPI, resp.StatusCode)
	}

	return data, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
