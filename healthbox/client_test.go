package healthbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const currentPayload = `{
	"serial": "250312-001",
	"description": "Healthbox 3.0",
	"warranty_number": "HB-123456",
	"sensor": [
		{"type": "global air quality index", "parameter": {"index": {"value": 95}}}
	],
	"room": {
		"1": {
			"name": "Living Room",
			"type": "living",
			"profile_name": "eco",
			"sensor": [{"type": "indoor temperature", "parameter": {"temperature": {"value": 21.5}}}],
			"parameter": {"nominal": {"value": 2}, "offset": {"value": 1}},
			"actuator": [{"type": "air valve", "parameter": {"flow_rate": {"value": 6}}}]
		},
		"2": {
			"name": "Kitchen",
			"type": "kitchen",
			"profile_name": "health",
			"sensor": [],
			"parameter": {},
			"actuator": []
		}
	}
}`

func deviceHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v2/api/data/current":
		io.WriteString(w, currentPayload)
	case r.URL.Path == "/v2/device/error":
		io.WriteString(w, `[{"description": "Wrong wiring"}]`)
	case r.URL.Path == "/renson_core/v2/global":
		io.WriteString(w, `{"firmware version": "2.3.1"}`)
	case r.URL.Path == "/renson_core/v1/wifi/client/status":
		io.WriteString(w, `{"status": "connected", "internet_connection": true, "ssid": "home"}`)
	case r.URL.Path == "/v2/device/fan":
		io.WriteString(w, `{"voltage": 3.4, "rpm": 1480}`)
	case strings.HasPrefix(r.URL.Path, "/v2/api/boost/"):
		io.WriteString(w, `{"level": 100, "enable": true, "remaining": 120}`)
	default:
		http.NotFound(w, r)
	}
}

// hostOf strips the scheme so the test server can stand in for a device
// addressed by host only.
func hostOf(server *httptest.Server) string {
	return strings.TrimPrefix(server.URL, "http://")
}

type recordingTransport struct {
	requests int
	closed   bool
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.requests++
	return http.DefaultTransport.RoundTrip(req)
}

func (t *recordingTransport) CloseIdleConnections() {
	t.closed = true
}

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("GetData", func() {
		It("should build a full snapshot with enrichment and boost data", func() {
			server := httptest.NewServer(http.HandlerFunc(deviceHandler))
			defer server.Close()

			client := NewClient(hostOf(server), "", nil)
			data, err := client.GetData(ctx)

			Expect(err).To(BeNil())
			Expect(data.Serial).To(Equal("250312-001"))
			Expect(data.Description).To(Equal("Healthbox 3.0"))
			Expect(data.WarrantyNumber).To(Equal("HB-123456"))
			Expect(data.GlobalAQI).To(HaveValue(Equal(95.0)))
			Expect(data.ErrorCount).To(Equal(1))
			Expect(data.FirmwareVersion).To(Equal("2.3.1"))
			Expect(data.Wifi.Status).To(HaveValue(Equal("connected")))
			Expect(data.Wifi.InternetConnection).To(HaveValue(BeTrue()))
			Expect(data.Wifi.SSID).To(HaveValue(Equal("home")))
			Expect(data.Wifi.ConnectionError).To(BeNil())
			Expect(data.Fan.Voltage).To(HaveValue(Equal(3.4)))
			Expect(data.Fan.RPM).To(HaveValue(Equal(1480.0)))

			Expect(data.Rooms).To(HaveLen(2))
			Expect(data.Rooms[0].Name).To(Equal("Living Room"))
			Expect(data.Rooms[0].Boost.Enabled).To(BeTrue())
			Expect(data.Rooms[0].Boost.Level).To(HaveValue(Equal(100.0)))
			Expect(data.Rooms[0].Boost.Remaining).To(HaveValue(Equal(120)))
		})

		It("should keep defaults when enrichment calls fail", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v2/api/data/current" {
					io.WriteString(w, currentPayload)
					return
				}
				http.Error(w, "nope", http.StatusInternalServerError)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "", nil)
			data, err := client.GetData(ctx)

			Expect(err).To(BeNil())
			Expect(data.ErrorCount).To(BeZero())
			Expect(data.FirmwareVersion).To(BeEmpty())
			Expect(data.Wifi).To(Equal(WifiStatus{}))
			Expect(data.Fan).To(Equal(FanStatus{}))
			Expect(data.Rooms[0].Boost).To(Equal(RoomBoost{}))
		})

		It("should fail when the primary fetch fails", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusInternalServerError)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "", nil)
			_, err := client.GetData(ctx)

			Expect(err).To(MatchError(ErrAPI))
		})

		It("should gate derived readings on the advanced API", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v2/api/api_key/status" {
					io.WriteString(w, `{"state": "valid"}`)
					return
				}
				deviceHandler(w, r)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "secret", nil)

			data, err := client.GetData(ctx)
			Expect(err).To(BeNil())
			Expect(data.Rooms[0].IndoorTemperature()).To(BeNil())

			valid, err := client.ValidateAdvancedAPIFeatures(ctx)
			Expect(err).To(BeNil())
			Expect(valid).To(BeTrue())
			Expect(client.AdvancedAPIEnabled()).To(BeTrue())

			data, err = client.GetData(ctx)
			Expect(err).To(BeNil())
			Expect(data.Rooms[0].IndoorTemperature()).To(HaveValue(Equal(21.5)))
		})
	})

	Describe("error classification", func() {
		It("should translate 401 into an authentication error", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "", nil)
			Expect(client.ValidateConnectivity(ctx)).To(MatchError(ErrAuthentication))
		})

		It("should translate 403 into an authentication error", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "forbidden", http.StatusForbidden)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "", nil)
			Expect(client.ValidateConnectivity(ctx)).To(MatchError(ErrAuthentication))
		})

		It("should translate other failure statuses into a generic API error", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "not found", http.StatusNotFound)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "", nil)
			Expect(client.ValidateConnectivity(ctx)).To(MatchError(ErrAPI))
		})

		It("should translate a timeout into a communication error", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(500 * time.Millisecond)
			}))
			defer server.Close()

			timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()

			client := NewClient(hostOf(server), "", nil)
			Expect(client.ValidateConnectivity(timeoutCtx)).To(MatchError(ErrCommunication))
		})

		It("should translate transport failures into a generic API error", func() {
			client := NewClient("127.0.0.1:1", "", nil)
			Expect(client.ValidateConnectivity(ctx)).To(MatchError(ErrAPI))
		})
	})

	Describe("GetRoomBoost", func() {
		It("should return the default boost on a malformed payload", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"level": 100}`)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "", nil)
			Expect(client.GetRoomBoost(ctx, 1)).To(Equal(RoomBoost{}))
		})

		It("should return the default boost on a request failure", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusInternalServerError)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "", nil)
			Expect(client.GetRoomBoost(ctx, 1)).To(Equal(RoomBoost{}))
		})
	})

	Describe("boost control", func() {
		It("should PUT the boost payload to the room endpoint", func() {
			var method, path string
			var body map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				method = r.Method
				path = r.URL.Path
				decoded := map[string]any{}
				json.NewDecoder(r.Body).Decode(&decoded)
				body = decoded
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "", nil)
			Expect(client.StartRoomBoost(ctx, 3, 150, 300)).To(BeNil())

			Expect(method).To(Equal(http.MethodPut))
			Expect(path).To(Equal("/v2/api/boost/3"))
			Expect(body).To(Equal(map[string]any{"enable": true, "level": 150.0, "timeout": 300.0}))

			Expect(client.StopRoomBoost(ctx, 3)).To(BeNil())
			Expect(body).To(Equal(map[string]any{"enable": false}))
		})

		It("should propagate request failures", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusBadRequest)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "", nil)
			Expect(client.StartRoomBoost(ctx, 3, 150, 300)).To(MatchError(ErrAPI))
			Expect(client.StopRoomBoost(ctx, 3)).To(MatchError(ErrAPI))
		})
	})

	Describe("EnableAdvancedAPIFeatures", func() {
		var originalDelay time.Duration

		BeforeEach(func() {
			originalDelay = advancedAPIApplyDelay
			advancedAPIApplyDelay = 10 * time.Millisecond
		})

		AfterEach(func() {
			advancedAPIApplyDelay = originalDelay
		})

		It("should fail without an API key and issue no request", func() {
			transport := &recordingTransport{}
			client := NewClient("127.0.0.1:1", "", &http.Client{Transport: transport})

			Expect(client.EnableAdvancedAPIFeatures(ctx, true)).To(MatchError(ErrAuthentication))
			Expect(transport.requests).To(BeZero())
		})

		It("should do nothing when pre-validation reports the key as valid", func() {
			var keySubmitted bool
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v2/api/api_key" {
					keySubmitted = true
					return
				}
				io.WriteString(w, `{"state": "valid"}`)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "secret", nil)
			Expect(client.EnableAdvancedAPIFeatures(ctx, true)).To(BeNil())
			Expect(client.AdvancedAPIEnabled()).To(BeTrue())
			Expect(keySubmitted).To(BeFalse())
		})

		It("should submit the raw key and fail when re-validation rejects it", func() {
			var submittedKey string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v2/api/api_key" {
					body, _ := io.ReadAll(r.Body)
					submittedKey = string(body)
					// The device answers key submissions with plain text.
					io.WriteString(w, "accepted")
					return
				}
				io.WriteString(w, `{"state": "invalid"}`)
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "secret", nil)
			Expect(client.EnableAdvancedAPIFeatures(ctx, false)).To(MatchError(ErrAuthentication))
			Expect(client.AdvancedAPIEnabled()).To(BeFalse())
			Expect(submittedKey).To(Equal("secret"))
		})

		It("should succeed when re-validation accepts the key", func() {
			valid := false
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v2/api/api_key" {
					valid = true
					io.WriteString(w, "accepted")
					return
				}
				if valid {
					io.WriteString(w, `{"state": "valid"}`)
				} else {
					io.WriteString(w, `{"state": "invalid"}`)
				}
			}))
			defer server.Close()

			client := NewClient(hostOf(server), "secret", nil)
			Expect(client.EnableAdvancedAPIFeatures(ctx, true)).To(BeNil())
			Expect(client.AdvancedAPIEnabled()).To(BeTrue())
		})
	})

	Describe("Close", func() {
		It("should never close a caller-supplied session", func() {
			server := httptest.NewServer(http.HandlerFunc(deviceHandler))
			defer server.Close()

			transport := &recordingTransport{}
			client := NewClient(hostOf(server), "", &http.Client{Transport: transport})

			Expect(client.ValidateConnectivity(ctx)).To(BeNil())
			Expect(transport.requests).To(Equal(1))

			client.Close()
			Expect(transport.closed).To(BeFalse())
		})

		It("should tolerate closing before any request was made", func() {
			client := NewClient("127.0.0.1:1", "", nil)
			client.Close()
		})
	})
})
