package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rmassch/go-healthbox3/healthbox"
)

// Collector scrapes a full snapshot from the device on every Prometheus
// collection. Absent readings simply leave their gauge unset.
type Collector struct {
	client *healthbox.Client

	scrapeSuccess prometheus.Gauge
	lastSuccess   prometheus.Gauge
	info          *prometheus.GaugeVec

	globalAQI    prometheus.Gauge
	errorCount   prometheus.Gauge
	wifiInternet prometheus.Gauge

	fanVoltage  prometheus.Gauge
	fanPressure prometheus.Gauge
	fanFlow     prometheus.Gauge
	fanPower    prometheus.Gauge
	fanRPM      prometheus.Gauge

	roomTemperature     *prometheus.GaugeVec
	roomHumidity        *prometheus.GaugeVec
	roomCO2             *prometheus.GaugeVec
	roomAQI             *prometheus.GaugeVec
	roomVOCPPM          *prometheus.GaugeVec
	roomVentilationRate *prometheus.GaugeVec
	roomBoostEnabled    *prometheus.GaugeVec
	roomBoostLevel      *prometheus.GaugeVec
	roomBoostRemaining  *prometheus.GaugeVec
}

func NewCollector(client *healthbox.Client) *Collector {
	infoLabels := []string{"serial", "description", "firmware"}
	roomLabels := []string{"room_id", "room"}
	return &Collector{
		client: client,
		scrapeSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthbox_scrape_success",
			Help: "Last scrape success (1=ok, 0=error)",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthbox_last_success_timestamp_seconds",
			Help: "Last successful scrape timestamp (epoch seconds)",
		}),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthbox_info",
			Help: "Healthbox device info",
		}, infoLabels),
		globalAQI: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthbox_global_air_quality_index",
			Help: "Device-wide air quality index",
		}),
		errorCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthbox_error_count",
			Help: "Number of device errors",
		}),
		wifiInternet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthbox_wifi_internet_connection",
			Help: "1 if the device reports an internet connection",
		}),
		fanVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthbox_fan_voltage_volts",
			Help: "Fan voltage (V)",
		}),
		fanPressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthbox_fan_pressure_pascal",
			Help: "Fan pressure (Pa)",
		}),
		fanFlow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthbox_fan_flow_m3h",
			Help: "Fan flow (m3/h)",
		}),
		fanPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthbox_fan_power_watts",
			Help: "Fan power (W)",
		}),
		fanRPM: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthbox_fan_speed_rpm",
			Help: "Fan speed (rpm)",
		}),
		roomTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthbox_room_temperature_celsius",
			Help: "Room temperature (celsius)",
		}, roomLabels),
		roomHumidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthbox_room_humidity_percent",
			Help: "Room relative humidity (%)",
		}, roomLabels),
		roomCO2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthbox_room_co2_ppm",
			Help: "Room CO2 concentration (ppm)",
		}, roomLabels),
		roomAQI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthbox_room_air_quality_index",
			Help: "Room air quality index",
		}, roomLabels),
		roomVOCPPM: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthbox_room_voc_ppm",
			Help: "Room volatile organic compounds (ppm)",
		}, roomLabels),
		roomVentilationRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthbox_room_ventilation_rate",
			Help: "Room airflow ventilation rate",
		}, roomLabels),
		roomBoostEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthbox_room_boost_enabled",
			Help: "1 if the room boost is enabled",
		}, roomLabels),
		roomBoostLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthbox_room_boost_level_percent",
			Help: "Room boost level (%)",
		}, roomLabels),
		roomBoostRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healthbox_room_boost_remaining_seconds",
			Help: "Remaining room boost time (seconds)",
		}, roomLabels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.scrapeSuccess.Describe(ch)
	c.lastSuccess.Describe(ch)
	c.info.Describe(ch)
	c.globalAQI.Describe(ch)
	c.errorCount.Describe(ch)
	c.wifiInternet.Describe(ch)
	c.fanVoltage.Describe(ch)
	c.fanPressure.Describe(ch)
	c.fanFlow.Describe(ch)
	c.fanPower.Describe(ch)
	c.fanRPM.Describe(ch)
	c.roomTemperature.Describe(ch)
	c.roomHumidity.Describe(ch)
	c.roomCO2.Describe(ch)
	c.roomAQI.Describe(ch)
	c.roomVOCPPM.Describe(ch)
	c.roomVentilationRate.Describe(ch)
	c.roomBoostEnabled.Describe(ch)
	c.roomBoostLevel.Describe(ch)
	c.roomBoostRemaining.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	data, err := c.client.GetData(ctx)
	if err != nil {
		c.scrapeSuccess.Set(0)
		c.collectAll(ch)
		return
	}

	c.scrapeSuccess.Set(1)
	c.lastSuccess.Set(float64(time.Now().Unix()))

	c.info.Reset()
	c.info.With(prometheus.Labels{
		"serial":      data.Serial,
		"description": data.Description,
		"firmware":    data.FirmwareVersion,
	}).Set(1)

	setGauge(c.globalAQI, data.GlobalAQI)
	c.errorCount.Set(float64(data.ErrorCount))
	if data.Wifi.InternetConnection != nil {
		c.wifiInternet.Set(boolValue(*data.Wifi.InternetConnection))
	}

	setGauge(c.fanVoltage, data.Fan.Voltage)
	setGauge(c.fanPressure, data.Fan.Pressure)
	setGauge(c.fanFlow, data.Fan.Flow)
	setGauge(c.fanPower, data.Fan.Power)
	setGauge(c.fanRPM, data.Fan.RPM)

	c.resetRooms()
	for _, room := range data.Rooms {
		labels := prometheus.Labels{
			"room_id": strconv.Itoa(room.ID),
			"room":    room.Name,
		}
		setGaugeVec(c.roomTemperature, labels, room.IndoorTemperature())
		setGaugeVec(c.roomHumidity, labels, room.IndoorHumidity())
		setGaugeVec(c.roomCO2, labels, room.IndoorCO2Concentration())
		setGaugeVec(c.roomAQI, labels, room.IndoorAQI())
		setGaugeVec(c.roomVOCPPM, labels, room.IndoorVOCPPM())
		setGaugeVec(c.roomVentilationRate, labels, room.AirflowVentilationRate())
		c.roomBoostEnabled.With(labels).Set(boolValue(room.Boost.Enabled))
		setGaugeVec(c.roomBoostLevel, labels, room.Boost.Level)
		if room.Boost.Remaining != nil {
			c.roomBoostRemaining.With(labels).Set(float64(*room.Boost.Remaining))
		}
	}

	c.collectAll(ch)
}

func (c *Collector) resetRooms() {
	c.roomTemperature.Reset()
	c.roomHumidity.Reset()
	c.roomCO2.Reset()
	c.roomAQI.Reset()
	c.roomVOCPPM.Reset()
	c.roomVentilationRate.Reset()
	c.roomBoostEnabled.Reset()
	c.roomBoostLevel.Reset()
	c.roomBoostRemaining.Reset()
}

func (c *Collector) collectAll(ch chan<- prometheus.Metric) {
	c.scrapeSuccess.Collect(ch)
	c.lastSuccess.Collect(ch)
	c.info.Collect(ch)
	c.globalAQI.Collect(ch)
	c.errorCount.Collect(ch)
	c.wifiInternet.Collect(ch)
	c.fanVoltage.Collect(ch)
	c.fanPressure.Collect(ch)
	c.fanFlow.Collect(ch)
	c.fanPower.Collect(ch)
	c.fanRPM.Collect(ch)
	c.roomTemperature.Collect(ch)
	c.roomHumidity.Collect(ch)
	c.roomCO2.Collect(ch)
	c.roomAQI.Collect(ch)
	c.roomVOCPPM.Collect(ch)
	c.roomVentilationRate.Collect(ch)
	c.roomBoostEnabled.Collect(ch)
	c.roomBoostLevel.Collect(ch)
	c.roomBoostRemaining.Collect(ch)
}

func setGauge(g prometheus.Gauge, value *float64) {
	if value == nil {
		return
	}
	g.Set(*value)
}

func setGaugeVec(g *prometheus.GaugeVec, labels prometheus.Labels, value *float64) {
	if value == nil {
		return
	}
	g.With(labels).Set(*value)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
