package relay

import (
	"sync"

	"github.com/carverauto/sigfox-relay/pkg/ubidots"
)

// Entry is the cached view of one device's datasource.
// Variables stays nil until the first lookup for the device.
type Entry struct {
	DeviceID   string
	Datasource ubidots.Datasource
	Variables  map[string]ubidots.Variable
}

// Directory indexes devices by normalized id. Variable maps handed out by the
// directory are shared and must be treated as read-only.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]*Entry)}
}

// Merge records the datasource for deviceID. An existing entry keeps its
// cached variables. Reports whether a new entry was created.
func (d *Directory) Merge(deviceID string, ds ubidots.Datasource) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.entries[deviceID]; ok {
		entry.Datasource = ds

		return false
	}

	d.entries[deviceID] = &Entry{DeviceID: deviceID, Datasource: ds}

	return true
}

// Lookup returns a copy of the entry for deviceID.
func (d *Directory) Lookup(deviceID string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.entries[deviceID]
	if !ok {
		return Entry{}, false
	}

	return *entry, true
}

// SetVariables caches the variable mapping for a known device.
func (d *Directory) SetVariables(deviceID string, vars map[string]ubidots.Variable) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries[deviceID]
	if !ok {
		return false
	}

	entry.Variables = vars

	return true
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.entries)
}

// DeviceIDs lists the known device ids in no particular order.
func (d *Directory) DeviceIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.entries))
	for id := range d.entries {
		ids = append(ids, id)
	}

	return ids
}
