package main

import (
	"log"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rmassch/go-healthbox3/bridge"
	"github.com/rmassch/go-healthbox3/config"
	"github.com/rmassch/go-healthbox3/metrics"
	"github.com/rmassch/go-healthbox3/routes"
)

func main() {
	cfg, err := config.LoadConfiguration("healthbox.json")
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
		return
	}

	bridge, err := bridge.New(cfg)
	if err != nil {
		log.Fatalf("Error setting up bridge: %v", err)
		return
	}

	mqttOpts := cfg.Mqtt.ClientOptions()
	// Configure MQTT subscriptions in the ConnectHandler to make sure they are set up after reconnect
	mqttOpts.SetOnConnectHandler(func(client mqtt.Client) {
		bridge.SubscribeToBoostCommands(client)
	})

	mqttClient := mqtt.NewClient(mqttOpts)
	if t := mqttClient.Connect(); t.Wait() && t.Error() != nil {
		log.Printf("MQTT connection error: %v", t.Error())
		return
	}

	// Boost
	bridge.RegisterBoost(mqttClient)
	go loopSafely(func() {
		bridge.PollBoostState(mqttClient)

		time.Sleep(10 * time.Second)
	})

	// Sensors
	bridge.RegisterSensors(mqttClient)
	go loopSafely(func() {
		bridge.PollSensors(mqttClient)

		time.Sleep(time.Minute)
	})

	// Prometheus
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(bridge.Client()))

	// Start httprouter
	router := httprouter.New()
	router.GET("/state", routes.State(bridge))
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go loopSafely(func() {
		http.ListenAndServe(":8080", router)
	})

	select {}
}
