package routes

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rmassch/go-healthbox3/bridge"
	"github.com/rmassch/go-healthbox3/healthbox"
)

type stateResponse struct {
	Serial          string         `json:"serial"`
	Description     string         `json:"description"`
	WarrantyNumber  string         `json:"warranty_number"`
	FirmwareVersion string         `json:"firmware_version"`
	GlobalAQI       *float64       `json:"global_aqi"`
	ErrorCount      int            `json:"error_count"`
	Rooms           []roomResponse `json:"rooms"`
	LastRefreshed   time.Time      `json:"last_refreshed"`
}

type roomResponse struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Profile         string   `json:"profile"`
	Temperature     *float64 `json:"temperature"`
	Humidity        *float64 `json:"humidity"`
	CO2             *float64 `json:"co2"`
	AQI             *float64 `json:"aqi"`
	VOCPPM          *float64 `json:"voc_ppm"`
	VentilationRate *float64 `json:"ventilation_rate"`
	BoostEnabled    bool     `json:"boost_enabled"`
	BoostLevel      *float64 `json:"boost_level"`
	BoostRemaining  *int     `json:"boost_remaining"`
}

type cache struct {
	lastRefreshed int64
	data          *healthbox.Snapshot
}

func State(b *bridge.Bridge) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	c := &cache{}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		now := time.Now().UnixMilli()

		if c.lastRefreshed+30_000 < now || c.data == nil {
			// Refresh
			data, err := b.GetData()
			if err != nil {
				log.Printf("Failed to get data: %v", err)

				return
			}

			c.lastRefreshed = now
			c.data = data

			log.Printf("Refreshed web cache")
		}

		rooms := make([]roomResponse, 0, len(c.data.Rooms))
		for _, room := range c.data.Rooms {
			rooms = append(rooms, roomResponse{
				ID:              room.ID,
				Name:            room.Name,
				Profile:         room.ProfileName(),
				Temperature:     room.IndoorTemperature(),
				Humidity:        room.IndoorHumidity(),
				CO2:             room.IndoorCO2Concentration(),
				AQI:             room.IndoorAQI(),
				VOCPPM:          room.IndoorVOCPPM(),
				VentilationRate: room.AirflowVentilationRate(),
				BoostEnabled:    room.Boost.Enabled,
				BoostLevel:      room.Boost.Level,
				BoostRemaining:  room.Boost.Remaining,
			})
		}

		resp := stateResponse{
			Serial:          c.data.Serial,
			Description:     c.data.Description,
			WarrantyNumber:  c.data.WarrantyNumber,
			FirmwareVersion: c.data.FirmwareVersion,
			GlobalAQI:       c.data.GlobalAQI,
			ErrorCount:      c.data.ErrorCount,
			Rooms:           rooms,
			LastRefreshed:   time.Unix(0, c.lastRefreshed*int64(time.Millisecond)),
		}

		if marshaled, err := json.Marshal(resp); err != nil {
			log.Printf("error marshaling: %v", err)
		} else {
			w.Write(marshaled)
		}
	}
}
