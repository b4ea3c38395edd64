package bridge

import "github.com/rmassch/go-healthbox3/healthbox"

// roomSensorConfiguration describes one per-room derived reading. The
// entity name is the suffix prefixed with the room name; get returns nil
// when the room does not report the reading.
type roomSensorConfiguration struct {
	suffix string
	class  string
	unit   string
	get    func(room *healthbox.Room) *float64
}

type deviceSensorConfiguration struct {
	name       string
	class      string
	unit       string
	get        func(snapshot *healthbox.Snapshot) *float64
	stateTopic string
}
