package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const HomeAssistantPrefix = "homeassistant"
const TopicPrefix = "healthbox"

const defaultBoostLevel = 100
const defaultBoostTimeout = 900

type Configuration struct {
	Host   string `json:"host"`
	ApiKey string `json:"api_key"`
	Mqtt   Mqtt   `json:"mqtt"`
	Boost  Boost  `json:"boost"`
}

type Mqtt struct {
	IpAddress string `json:"ip_address"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// Boost holds the level (percent) and timeout (seconds) used when a boost
// command arrives over MQTT.
type Boost struct {
	Level   float64 `json:"level"`
	Timeout int     `json:"timeout"`
}

func LoadConfiguration(filename string) (*Configuration, error) {
	var file *os.File
	var err error
	if file, err = os.Open(filename); err != nil {
		return nil, err
	}

	defer file.Close()
	decoder := json.NewDecoder(file)
	configuration := &Configuration{}
	if err := decoder.Decode(configuration); err != nil {
		return nil, err
	}

	if configuration.Boost.Level == 0 {
		configuration.Boost.Level = defaultBoostLevel
	}
	if configuration.Boost.Timeout == 0 {
		configuration.Boost.Timeout = defaultBoostTimeout
	}

	return configuration, nil
}

func (m *Mqtt) ClientOptions() *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%v:1883", m.IpAddress)).
		SetUsername(m.Username).
		SetPassword(m.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(client mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		}).
		SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
			log.Printf("MQTT reconnecting")
		})
}
