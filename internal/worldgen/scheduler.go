package worldgen

import (
	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/worldserver/internal/environment"
	"github.com/R3E-Network/worldserver/internal/logging"
	"github.com/R3E-Network/worldserver/internal/metrics"
)

// RespawnEvent names one object that just transitioned back to
// available, for the additive fan-out described in the design notes on
// the respawn broadcast gap.
type RespawnEvent struct {
	Chunk    environment.ChunkCoord
	ObjectID string
}

// Scheduler ticks the Environment Registry's respawnable objects back
// to available on a fixed interval, via robfig/cron rather than a raw
// ticker loop.
type Scheduler struct {
	env       *environment.Registry
	chunkSize float64
	notify    chan RespawnEvent
	log       *logging.Logger
	cron      *cron.Cron
}

// NewScheduler builds a scheduler over env. RespawnNotifier delivers one
// RespawnEvent per respawned object; it is buffered and non-blocking —
// a slow consumer drops events rather than stalling the tick.
func NewScheduler(env *environment.Registry, chunkSize float64, log *logging.Logger) *Scheduler {
	return &Scheduler{
		env:       env,
		chunkSize: chunkSize,
		notify:    make(chan RespawnEvent, 256),
		log:       log,
		cron:      cron.New(cron.WithSeconds()),
	}
}

// RespawnNotifier returns the channel additive infrastructure consumes
// to fan respawns out to sessions via players_seeing(chunk).
func (s *Scheduler) RespawnNotifier() <-chan RespawnEvent {
	return s.notify
}

// Start schedules the 10s respawn tick. It does not block.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("@every 10s", s.tick)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for any in-flight tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) tick() {
	ids := s.env.RespawnableIDs()
	for _, id := range ids {
		msg := s.env.Respawn(id)
		if msg == nil {
			continue
		}

		metrics.IncRespawn()
		chunk := environment.ChunkOf(msg.Object.Position, s.chunkSize)
		select {
		case s.notify <- RespawnEvent{Chunk: chunk, ObjectID: id}:
		default:
			if s.log != nil {
				s.log.WithField("object_id", id).Warn("respawn notifier channel full, dropping event")
			}
		}
	}
	if len(ids) > 0 && s.log != nil {
		s.log.WithField("count", len(ids)).Info("respawn scheduler tick")
	}
}
