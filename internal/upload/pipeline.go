package upload

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pipeline is the validate -> credential -> upload flow. One file is
// in flight per compose action; an upload is not cancellable once
// started — abandoning the progress channel only stops listening.
type Pipeline struct {
	blob BlobUploader
	log  *zap.SugaredLogger
	tick time.Duration
}

func NewPipeline(blob BlobUploader, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{blob: blob, log: log, tick: 200 * time.Millisecond}
}

// Upload validates locally, then performs the two-phase upload. On any
// failure no partial message data exists; the caller only creates a
// Message from a returned Result.
func (p *Pipeline) Upload(ctx context.Context, f File, chatID string, cat Category) (*Result, error) {
	if err := Validate(f, cat); err != nil {
		return nil, err
	}
	folder := "chat_media/" + chatID
	res, err := p.blob.Upload(ctx, f, folder)
	if err != nil {
		p.log.Warnw("attachment upload failed", "chat_id", chatID, "file", f.Name, "err", err)
		return nil, err
	}
	return res, nil
}

// Outcome is the terminal result of a progress-reporting upload.
type Outcome struct {
	Result *Result
	Err    error
}

// UploadWithProgress runs Upload in the background and reports a
// percentage on the progress channel. The ramp up to 90 is a simulated
// UI affordance, not a byte count; 100 is emitted only after the store
// has actually confirmed the upload. Progress sends never block, so a
// listener that walks away does not stall the upload.
func (p *Pipeline) UploadWithProgress(ctx context.Context, f File, chatID string, cat Category) (<-chan int, <-chan Outcome) {
	progress := make(chan int, 1)
	done := make(chan Outcome, 1)

	go func() {
		defer close(progress)
		defer close(done)

		outcome := make(chan Outcome, 1)
		go func() {
			res, err := p.Upload(ctx, f, chatID, cat)
			outcome <- Outcome{Result: res, Err: err}
		}()

		ticker := time.NewTicker(p.tick)
		defer ticker.Stop()
		pct := 0
		for {
			select {
			case <-ticker.C:
				if pct < 90 {
					pct += 10
					offer(progress, pct)
				}
			case o := <-outcome:
				if o.Err == nil {
					offer(progress, 100)
				}
				done <- o
				return
			}
		}
	}()

	return progress, done
}

func offer(ch chan int, pct int) {
	select {
	case <-ch:
	default:
	}
	ch <- pct
}
