package orders

import (
	"strings"

	"github.com/Syntia28/nikos/pkg/enums"
)

// BuildTracking lays the stored estado over the flow selected by tipoEntrega. Transitions are
// not validated; an estado outside the flow yields Index -1 and no highlighted step.
func BuildTracking(tipoEntrega, estado string) Tracking {
	pickup := enums.IsPickup(tipoEntrega)
	flow := enums.DeliveryFlow
	if pickup {
		flow = enums.PickupFlow
	}

	current := enums.OrderStatus(strings.ToLower(strings.TrimSpace(estado)))
	index := -1
	for i, step := range flow {
		if step == current {
			index = i
			break
		}
	}

	steps := make([]Step, 0, len(flow))
	for i, step := range flow {
		steps = append(steps, Step{
			Estado:    step,
			Active:    i == index,
			Completed: i < index,
		})
	}
	return Tracking{Estado: estado, Pickup: pickup, Index: index, Steps: steps}
}
