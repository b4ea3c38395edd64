package bridge

import (
	"context"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rmassch/go-healthbox3/config"
	"github.com/rmassch/go-healthbox3/healthbox"
	"github.com/rmassch/go-healthbox3/homeassistant"
)

const requestTimeout = time.Minute

type Bridge struct {
	cfg             *config.Configuration
	healthboxClient *healthbox.Client
	rooms           []*healthbox.Room
	roomTopics      map[int]map[string]string
	lastBoostState  map[int]string
}

func New(cfg *config.Configuration) (*Bridge, error) {
	log.Printf("Connecting to %v", cfg.Host)

	healthboxClient := healthbox.NewClient(cfg.Host, cfg.ApiKey, nil)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := healthboxClient.ValidateConnectivity(ctx); err != nil {
		return nil, err
	}

	// Per-sensor readings are only reported once the advanced API is on.
	if cfg.ApiKey != "" {
		if err := healthboxClient.EnableAdvancedAPIFeatures(ctx, true); err != nil {
			return nil, err
		}
	}

	data, err := healthboxClient.GetData(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to %v (serial %v, firmware %v)", data.Description, data.Serial, data.FirmwareVersion)

	return &Bridge{
		cfg:             cfg,
		healthboxClient: healthboxClient,
		rooms:           data.Rooms,
		roomTopics:      make(map[int]map[string]string),
		lastBoostState:  make(map[int]string),
	}, nil
}

func (b *Bridge) RegisterBoost(mqttClient mqtt.Client) error {
	homeAssistantClient := homeassistant.NewClient(mqttClient)

	for _, room := range b.rooms {
		name := fmt.Sprintf("Healthbox %v Boost", room.Name)
		if _, _, err := homeAssistantClient.RegisterBoostFan(room.ID, name); err != nil {
			return err
		}
		log.Printf("Registered boost fan for %v", room.Name)
	}

	return nil
}

func (b *Bridge) SubscribeToBoostCommands(mqttClient mqtt.Client) {
	for _, room := range b.rooms {
		roomID := room.ID
		topic := fmt.Sprintf("%v/boost/%v/cmd", config.TopicPrefix, roomID)

		if t := mqttClient.Subscribe(topic, 0, func(client mqtt.Client, msg mqtt.Message) {
			command := string(msg.Payload())

			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			var err error
			if command == "OFF" {
				err = b.healthboxClient.StopRoomBoost(ctx, roomID)
			} else {
				err = b.healthboxClient.StartRoomBoost(ctx, roomID, b.cfg.Boost.Level, b.cfg.Boost.Timeout)
			}
			if err != nil {
				log.Printf("Error setting boost for room %v: %v", roomID, err)
			}
		}); t.Wait() && t.Error() != nil {
			log.Printf("MQTT receive error: %v", t.Error())
		}
	}
}

func (b *Bridge) RegisterSensors(mqttClient mqtt.Client) error {
	homeAssistantClient := homeassistant.NewClient(mqttClient)

	for _, sensorConfig := range deviceSensorDefinitions {
		if stateTopic, err := homeAssistantClient.RegisterSensor(sensorConfig.name, sensorConfig.class, sensorConfig.unit); err != nil {
			return err
		} else {
			log.Printf("Registered sensor %v", sensorConfig.name)
			sensorConfig.stateTopic = stateTopic
		}
	}

	for _, room := range b.rooms {
		topics := make(map[string]string)
		for _, sensorConfig := range roomSensorDefinitions {
			name := fmt.Sprintf("Healthbox %v %v", room.Name, sensorConfig.suffix)
			if stateTopic, err := homeAssistantClient.RegisterSensor(name, sensorConfig.class, sensorConfig.unit); err != nil {
				return err
			} else {
				log.Printf("Registered sensor %v", name)
				topics[sensorConfig.suffix] = stateTopic
			}
		}
		b.roomTopics[room.ID] = topics
	}

	return nil
}

func (b *Bridge) PollSensors(mqttClient mqtt.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	data, err := b.healthboxClient.GetData(ctx)
	if err != nil {
		log.Panicf("Failed to get data: %v", err)
	}

	for _, sensorConfig := range deviceSensorDefinitions {
		value := sensorConfig.get(data)
		if value == nil {
			continue
		}

		if t := mqttClient.Publish(sensorConfig.stateTopic, 0, true, fmt.Sprintf("%v", *value)); t.Wait() && t.Error() != nil {
			log.Printf("MQTT publishing failed: %v", t.Error())
			continue
		}
	}

	for _, room := range data.Rooms {
		topics := b.roomTopics[room.ID]
		if topics == nil {
			continue
		}

		for _, sensorConfig := range roomSensorDefinitions {
			value := sensorConfig.get(room)
			if value == nil {
				continue
			}

			if t := mqttClient.Publish(topics[sensorConfig.suffix], 0, true, fmt.Sprintf("%v", *value)); t.Wait() && t.Error() != nil {
				log.Printf("MQTT publishing failed: %v", t.Error())
				continue
			}
		}
	}
}

func (b *Bridge) PollBoostState(mqttClient mqtt.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	for _, room := range b.rooms {
		boost := b.healthboxClient.GetRoomBoost(ctx, room.ID)

		var stateMessage string
		if boost.Enabled {
			stateMessage = "ON"
		} else {
			stateMessage = "OFF"
		}

		if b.lastBoostState[room.ID] == stateMessage {
			continue
		}

		topic := fmt.Sprintf("%v/boost/%v/state", config.TopicPrefix, room.ID)
		if t := mqttClient.Publish(topic, 0, true, stateMessage); t.Wait() && t.Error() != nil {
			log.Printf("MQTT publishing failed: %v", t.Error())
			continue
		}

		b.lastBoostState[room.ID] = stateMessage
	}
}

func (b *Bridge) GetData() (*healthbox.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	return b.healthboxClient.GetData(ctx)
}

func (b *Bridge) Client() *healthbox.Client {
	return b.healthboxClient
}
