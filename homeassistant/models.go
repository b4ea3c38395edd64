package homeassistant

type sensorConfiguration struct {
	UniqueId          string `json:"unique_id"`
	Name              string `json:"name"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateTopic        string `json:"state_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
}

type fanConfiguration struct {
	UniqueId     string `json:"unique_id"`
	Name         string `json:"name"`
	StateTopic   string `json:"state_topic"`
	CommandTopic string `json:"command_topic"`
}
