package ringo

import (
	"github.com/brickingsoft/ringo/pkg/liburing"
	"github.com/brickingsoft/ringo/pkg/registry"
	"github.com/sirupsen/logrus"
)

// dispatcher
// routes reaped completions to their slots in ring order without interpreting results.
type dispatcher struct {
	registry *registry.Registry
	logger   logrus.FieldLogger
}

func (d *dispatcher) dispatch(events []liburing.CompletionQueueEvent) (int, error) {
	for i, event := range events {
		tag := registry.TagFromUserData(event.UserData)
		abandoned := d.registry.State(tag) == registry.Abandoned
		kind := d.registry.Kind(tag)
		if err := d.registry.Complete(tag, registry.Completion{Res: event.Res, Flags: event.Flags}); err != nil {
			d.logger.WithFields(logrus.Fields{
				"user_data": event.UserData,
				"tag":       tag.String(),
				"res":       event.Res,
				"flags":     event.Flags,
			}).Error("ringo: completion does not belong to any in-flight operation")
			return i, err
		}
		if abandoned {
			d.logger.WithFields(logrus.Fields{
				"tag":  tag.String(),
				"kind": kind.String(),
				"res":  event.Res,
			}).Debug("ringo: dropped completion of abandoned operation")
		}
	}
	return len(events), nil
}
