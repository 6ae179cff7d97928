package transcribe

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agenthands/scrivener/internal/core/model"
)

// Runner fans one image out to every configured engine, producing the
// redundancy group's draft slots. Each engine's failure is isolated in its
// own slot: one engine timing out never fails the group.
type Runner struct {
	engines []Engine
	log     *logrus.Entry
}

func NewRunner(engines []Engine) *Runner {
	return &Runner{
		engines: engines,
		log:     logrus.WithField("component", "transcribe"),
	}
}

func (r *Runner) EngineCount() int { return len(r.engines) }

// Run transcribes the image with all engines concurrently. Slot order is the
// engine configuration order; every slot gets its own transcription ID so it
// can be versioned independently.
func (r *Runner) Run(ctx context.Context, dossierID string, req Request) []model.DraftSlot {
	slots := make([]model.DraftSlot, len(r.engines))

	var wg sync.WaitGroup
	for i, engine := range r.engines {
		wg.Add(1)
		go func(i int, engine Engine) {
			defer wg.Done()

			slot := model.DraftSlot{
				DossierID:       dossierID,
				TranscriptionID: uuid.New().String(),
				SlotIndex:       i,
				Engine:          engine.Name(),
			}
			result, err := engine.Transcribe(ctx, req)
			if err != nil {
				r.log.WithField("engine", engine.Name()).WithError(err).Warn("transcription failed")
				slot.Success = false
				slot.Error = err.Error()
			} else {
				slot.Success = true
				slot.RawText = result.Text
				slot.TokenCount = result.TokenCount
			}
			slots[i] = slot
		}(i, engine)
	}
	wg.Wait()

	return slots
}
