package healthbox

import (
	"sort"
	"strconv"
	"strings"
)

// Raw payload shapes for /v2/api/data/current. The device reports fewer
// sensors and parameters depending on installed hardware, so every leaf is
// decoded tolerantly.

type ParameterValue struct {
	Value any `json:"value"`
}

type SensorData struct {
	Type      string                    `json:"type"`
	Parameter map[string]ParameterValue `json:"parameter"`
}

type ActuatorData struct {
	Type      string                    `json:"type"`
	Parameter map[string]ParameterValue `json:"parameter"`
}

type roomData struct {
	Name        string                    `json:"name"`
	Type        string                    `json:"type"`
	Sensor      []SensorData              `json:"sensor"`
	Parameter   map[string]ParameterValue `json:"parameter"`
	Actuator    []ActuatorData            `json:"actuator"`
	ProfileName string                    `json:"profile_name"`
}

type currentData struct {
	Serial         string              `json:"serial"`
	Description    string              `json:"description"`
	WarrantyNumber string              `json:"warranty_number"`
	Sensor         []SensorData        `json:"sensor"`
	Room           map[string]roomData `json:"room"`
}

type boostData struct {
	Level     *float64 `json:"level"`
	Enable    *bool    `json:"enable"`
	Remaining *int     `json:"remaining"`
}

type wifiData struct {
	Status             *string `json:"status"`
	InternetConnection *bool   `json:"internet_connection"`
	SSID               *string `json:"ssid"`
	ConnectionError    *string `json:"connection_error"`
}

type fanData struct {
	Voltage  *float64 `json:"voltage"`
	Pressure *float64 `json:"pressure"`
	Flow     *float64 `json:"flow"`
	Power    *float64 `json:"power"`
	RPM      *float64 `json:"rpm"`
}

type coreData struct {
	FirmwareVersion *string `json:"firmware version"`
}

// Snapshot is one complete point-in-time capture of device and room
// telemetry. Nil pointer fields mean the device did not report the value.
type Snapshot struct {
	Serial          string
	Description     string
	WarrantyNumber  string
	GlobalAQI       *float64
	FirmwareVersion string
	ErrorCount      int
	Wifi            WifiStatus
	Fan             FanStatus
	Rooms           []*Room
}

type WifiStatus struct {
	Status             *string
	InternetConnection *bool
	SSID               *string
	ConnectionError    *string
}

type FanStatus struct {
	Voltage  *float64
	Pressure *float64
	Flow     *float64
	Power    *float64
	RPM      *float64
}

// RoomBoost is the transient boost state of one room. The zero value is
// used whenever the boost fetch fails.
type RoomBoost struct {
	Level     *float64
	Enabled   bool
	Remaining *int
}

func newSnapshot(data currentData, advancedFeatures bool) *Snapshot {
	snapshot := &Snapshot{
		Serial:         data.Serial,
		Description:    data.Description,
		WarrantyNumber: data.WarrantyNumber,
		GlobalAQI:      globalAQIFromData(data),
	}

	// JSON object order is not observable through a map, so rooms are
	// ordered by ascending numeric id. Keys that are not integers are
	// skipped.
	ids := make([]int, 0, len(data.Room))
	for key := range data.Room {
		if id, err := strconv.Atoi(key); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	for _, id := range ids {
		snapshot.Rooms = append(snapshot.Rooms, newRoom(id, data.Room[strconv.Itoa(id)], advancedFeatures))
	}

	return snapshot
}

func globalAQIFromData(data currentData) *float64 {
	for _, sensor := range data.Sensor {
		if sensor.Type == "global air quality index" {
			return parameterNumber(sensor.Parameter, "index")
		}
	}

	return nil
}

// Room holds one room's identity and raw telemetry. Derived readings are
// recomputed on every call and return nil when the reading is absent, never
// an error: missing sensors are a normal state of the device.
type Room struct {
	ID             int
	Name           string
	Type           string
	EnabledSensors []string
	Boost          RoomBoost

	sensors          []SensorData
	parameters       map[string]ParameterValue
	actuators        []ActuatorData
	profile          string
	advancedFeatures bool
}

func newRoom(id int, data roomData, advancedFeatures bool) *Room {
	enabledSensors := make([]string, 0, len(data.Sensor))
	for _, sensor := range data.Sensor {
		enabledSensors = append(enabledSensors, sensor.Type)
	}

	return &Room{
		ID:               id,
		Name:             data.Name,
		Type:             data.Type,
		EnabledSensors:   enabledSensors,
		sensors:          data.Sensor,
		parameters:       data.Parameter,
		actuators:        data.Actuator,
		profile:          data.ProfileName,
		advancedFeatures: advancedFeatures,
	}
}

// Maps a sensor type to the parameter key carrying its reading.
var sensorTypeKeys = map[string]string{
	"indoor volatile organic compounds": "concentration",
	"indoor air quality index":          "index",
	"indoor CO2":                        "concentration",
	"indoor relative humidity":          "humidity",
	"indoor temperature":                "temperature",
}

func (r *Room) IndoorTemperature() *float64 {
	return r.sensorValue("indoor temperature")
}

func (r *Room) IndoorHumidity() *float64 {
	return r.sensorValue("indoor relative humidity")
}

func (r *Room) IndoorCO2Concentration() *float64 {
	return r.sensorValue("indoor CO2")
}

func (r *Room) IndoorAQI() *float64 {
	return r.sensorValue("indoor air quality index")
}

func (r *Room) IndoorVOCPPM() *float64 {
	return r.sensorValue("indoor volatile organic compounds")
}

func (r *Room) IndoorVOCMicrogPerCubic() *float64 {
	ppm := r.IndoorVOCPPM()
	if ppm == nil {
		return nil
	}

	value := *ppm * 1000
	return &value
}

// AirflowVentilationRate is the air valve flow rate relative to the room's
// nominal flow. A zero denominator is treated as absent.
func (r *Room) AirflowVentilationRate() *float64 {
	nominal := parameterNumber(r.parameters, "nominal")
	if nominal == nil {
		return nil
	}

	var offset float64
	if v := parameterNumber(r.parameters, "offset"); v != nil {
		offset = *v
	}

	for _, actuator := range r.actuators {
		if actuator.Type != "air valve" {
			continue
		}

		flowRate := parameterNumber(actuator.Parameter, "flow_rate")
		if flowRate == nil || *nominal+offset == 0 {
			return nil
		}

		rate := *flowRate / (*nominal + offset)
		return &rate
	}

	return nil
}

func (r *Room) ProfileName() string {
	if r.profile == "" {
		return ""
	}

	return strings.ToUpper(r.profile[:1]) + strings.ToLower(r.profile[1:])
}

// sensorValue extracts a derived reading. It requires the advanced API to
// be enabled, the type to be listed among the room's sensors and the sensor
// record to actually carry the expected parameter key; sensors are
// sometimes listed but empty.
func (r *Room) sensorValue(sensorType string) *float64 {
	if !r.advancedFeatures || !r.sensorEnabled(sensorType) {
		return nil
	}

	key, ok := sensorTypeKeys[sensorType]
	if !ok {
		return nil
	}

	for _, sensor := range r.sensors {
		if strings.Contains(sensor.Type, sensorType) {
			return parameterNumber(sensor.Parameter, key)
		}
	}

	return nil
}

func (r *Room) sensorEnabled(sensorType string) bool {
	for _, enabled := range r.EnabledSensors {
		if enabled == sensorType {
			return true
		}
	}

	return false
}

func parameterNumber(parameters map[string]ParameterValue, key string) *float64 {
	parameter, ok := parameters[key]
	if !ok {
		return nil
	}

	if value, ok := parameter.Value.(float64); ok {
		return &value
	}

	return nil
}
