package homeassistant

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rmassch/go-healthbox3/config"
)

type Client struct {
	mqtt mqtt.Client
}

func NewClient(mqtt mqtt.Client) *Client {
	return &Client{
		mqtt: mqtt,
	}
}

// RegisterBoostFan announces a fan entity for one room's boost mode and
// returns its state and command topics.
func (h *Client) RegisterBoostFan(roomID int, name string) (string, string, error) {
	stateTopic := fmt.Sprintf("%v/boost/%v/state", config.TopicPrefix, roomID)
	commandTopic := fmt.Sprintf("%v/boost/%v/cmd", config.TopicPrefix, roomID)

	fanConfiguration, _ := json.Marshal(fanConfiguration{
		UniqueId:     fmt.Sprintf("healthbox_boost_%v", roomID),
		Name:         name,
		StateTopic:   stateTopic,
		CommandTopic: commandTopic,
	})

	configTopic := fmt.Sprintf("%v/fan/healthbox_boost_%v/config", config.HomeAssistantPrefix, roomID)

	if t := h.mqtt.Publish(configTopic, 0, true, fanConfiguration); t.Wait() && t.Error() != nil {
		return "", "", t.Error()
	}

	return stateTopic, commandTopic, nil
}

func (h *Client) RegisterSensor(name string, class string, unit string) (string, error) {
	uniqueId := strings.Replace(strings.ToLower(name), " ", "_", -1)

	var stateTopic string
	if class == "" {
		stateTopic = fmt.Sprintf("%v/%v", config.TopicPrefix, uniqueId)
	} else {
		stateTopic = fmt.Sprintf("%v/%v/%v", config.TopicPrefix, class, uniqueId)
	}

	sensorConfiguration, _ := json.Marshal(sensorConfiguration{
		UniqueId:          uniqueId,
		Name:              name,
		DeviceClass:       class,
		StateTopic:        stateTopic,
		UnitOfMeasurement: unit,
	})

	configTopic := fmt.Sprintf("%v/sensor/%v/config", config.HomeAssistantPrefix, uniqueId)

	if t := h.mqtt.Publish(configTopic, 0, true, sensorConfiguration); t.Wait() && t.Error() != nil {
		return "", t.Error()
	}

	return stateTopic, nil
}
