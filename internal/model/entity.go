package model

import "time"

// EntityStatus distinguishes auto-created placeholder entities from ones a
// STATE upload has declared explicitly.
type EntityStatus string

const (
	// EntityProvisional marks a placeholder created from a STREAM row that
	// referenced an unseen entity.
	EntityProvisional EntityStatus = "PROVISIONAL"
	// EntityOfficial marks an entity declared by a STATE upload.
	EntityOfficial EntityStatus = "OFFICIAL"
)

// EntityRegistryRecord is one entry in the per-tenant entity registry.
// The only allowed status mutation is PROVISIONAL -> OFFICIAL, performed
// exclusively by the entity resolver. Records are never deleted.
type EntityRegistryRecord struct {
	FirstSeen      time.Time
	UpdatedAt      time.Time
	TenantID       string
	Name           string
	NormalizedName string
	Category       string
	Status         EntityStatus
	Price          *float64
}

// NormalizeEntityName produces the registry key for an entity name.
// It shares the signature normalization with the learned-pattern cache so
// that "Kryptonite ", "KRYPTONITE" and "kryptonite" collide.
func NormalizeEntityName(name string) string {
	return PatternSignature(name)
}
