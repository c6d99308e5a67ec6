package config

import "fmt"

// Slot addresses a subsystem (controller or module) that configuration
// variables are recorded against: a (type, address) pair, as spec.md's
// glossary describes.
type Slot struct {
	Type    uint8
	Address uint8
}

// ConfigVars holds the fixed set of configuration variables scoped to one
// slot: the two buffer rollover policies and the three tick intervals.
type ConfigVars struct {
	StorageFillStop   bool   `yaml:"storage_fillstop"`
	StreamingFillStop bool   `yaml:"streaming_fillstop"`
	Fast              uint32 `yaml:"fast"`  // seconds, 0 = disabled
	User1             uint32 `yaml:"user1"` // seconds, 0 = disabled
	User2             uint32 `yaml:"user2"` // seconds, 0 = disabled
}

// ConfigDatabase is the flat (slot -> ConfigVars) map a SensorGraph keeps,
// per spec.md §3's "config_database keyed by (slot, config_id)" — here
// the whole ConfigVars struct is addressed by slot, since the fixed
// config-id set spec.md enumerates is exactly these five variables.
type ConfigDatabase struct {
	vars map[Slot]ConfigVars
}

// NewConfigDatabase builds an empty config database.
func NewConfigDatabase() *ConfigDatabase {
	return &ConfigDatabase{vars: make(map[Slot]ConfigVars)}
}

// Set records (or replaces) the configuration variables for a slot.
func (db *ConfigDatabase) Set(slot Slot, vars ConfigVars) {
	db.vars[slot] = vars
}

// Get returns the configuration variables recorded for a slot, or the
// documented defaults (all false/zero) if none have been set.
func (db *ConfigDatabase) Get(slot Slot) ConfigVars {
	if v, ok := db.vars[slot]; ok {
		return v
	}
	return ConfigVars{}
}

func (s Slot) String() string {
	return fmt.Sprintf("slot(type=%d,addr=%d)", s.Type, s.Address)
}
