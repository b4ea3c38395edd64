package bridge

import "github.com/rmassch/go-healthbox3/healthbox"

var roomSensorDefinitions = [...]*roomSensorConfiguration{
	{
		suffix: "Temperature",
		class:  "temperature",
		unit:   "°C",
		get:    func(room *healthbox.Room) *float64 { return room.IndoorTemperature() },
	},
	{
		suffix: "Humidity",
		class:  "humidity",
		unit:   "%",
		get:    func(room *healthbox.Room) *float64 { return room.IndoorHumidity() },
	},
	{
		suffix: "CO2",
		class:  "carbon_dioxide",
		unit:   "ppm",
		get:    func(room *healthbox.Room) *float64 { return room.IndoorCO2Concentration() },
	},
	{
		suffix: "Air Quality Index",
		get:    func(room *healthbox.Room) *float64 { return room.IndoorAQI() },
	},
	{
		suffix: "VOC",
		unit:   "µg/m³",
		get:    func(room *healthbox.Room) *float64 { return room.IndoorVOCMicrogPerCubic() },
	},
	{
		suffix: "Ventilation Rate",
		get:    func(room *healthbox.Room) *float64 { return room.AirflowVentilationRate() },
	},
}

var deviceSensorDefinitions = [...]*deviceSensorConfiguration{
	{
		name: "Healthbox Global Air Quality Index",
		get:  func(snapshot *healthbox.Snapshot) *float64 { return snapshot.GlobalAQI },
	},
	{
		name: "Healthbox Error Count",
		get: func(snapshot *healthbox.Snapshot) *float64 {
			count := float64(snapshot.ErrorCount)
			return &count
		},
	},
	{
		name:  "Healthbox Fan Voltage",
		class: "voltage",
		unit:  "V",
		get:   func(snapshot *healthbox.Snapshot) *float64 { return snapshot.Fan.Voltage },
	},
	{
		name:  "Healthbox Fan Pressure",
		class: "pressure",
		unit:  "Pa",
		get:   func(snapshot *healthbox.Snapshot) *float64 { return snapshot.Fan.Pressure },
	},
	{
		name: "Healthbox Fan Flow",
		unit: "m³/h",
		get:  func(snapshot *healthbox.Snapshot) *float64 { return snapshot.Fan.Flow },
	},
	{
		name:  "Healthbox Fan Power",
		class: "power",
		unit:  "W",
		get:   func(snapshot *healthbox.Snapshot) *float64 { return snapshot.Fan.Power },
	},
	{
		name: "Healthbox Fan Speed",
		unit: "rpm",
		get:  func(snapshot *healthbox.Snapshot) *float64 { return snapshot.Fan.RPM },
	},
}
