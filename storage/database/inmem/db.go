// Package inmemdb provides in-memory repository implementations for tests
// and local hacking.
package inmemdb

import (
	"sync"

	"github.com/trezcool/hudhurio/core/attendance"
	"github.com/trezcool/hudhurio/core/audit"
	"github.com/trezcool/hudhurio/core/device"
	"github.com/trezcool/hudhurio/core/dispute"
)

type DB struct {
	mutex sync.RWMutex

	geofences   map[string]*attendance.Geofence // by school id
	records     map[string]*attendance.Record   // by record id
	scanLogs    []*attendance.ScanLog
	devices     map[string]*device.Device
	enrollments map[string]*device.Enrollment // by school id + "\x00" + biometric id
	disputes    map[string]*dispute.Dispute
	audits      []*audit.Entry
}

func NewDB() *DB {
	return &DB{
		geofences:   make(map[string]*attendance.Geofence),
		records:     make(map[string]*attendance.Record),
		devices:     make(map[string]*device.Device),
		enrollments: make(map[string]*device.Enrollment),
		disputes:    make(map[string]*dispute.Dispute),
	}
}

func enrollmentKey(schoolID, biometricID string) string {
	return schoolID + "\x00" + biometricID
}
