package ports

import "github.com/carlosrabelo/stbmon/core/domain/entities"

// StatisticsService defines the port for polling a device and driving its controls
type StatisticsService interface {
	Poll() (entities.Snapshot, error)
	ControlProperty(req entities.ControlRequest) error
	ControlProperties(reqs []entities.ControlRequest) error
	Controls() []entities.ControlDescriptor
}
