package export

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"protevent/combiner"
	"protevent/database"
	"protevent/events"
)

// Uploader pushes a merged clip to remote storage and returns its public
// URL. Implemented by storage.R2Storage; nil disables uploading.
type Uploader interface {
	UploadFile(localPath, key string) (string, error)
}

// Pipeline runs the full export flow for a fired event: invoke the archiver
// with retries, combine the resulting segments, record the outcome, and
// optionally upload merged clips. Exports for different identifiers run
// concurrently up to a configured bound; exports for the same identifier
// are serialized so re-invocations never write into one folder at once.
type Pipeline struct {
	exporter Exporter
	retry    RetryPolicy
	combiner *combiner.Combiner
	db       database.Database
	uploader Uploader

	downloadsPath string
	sem           *semaphore.Weighted

	mu       sync.Mutex
	inflight map[string]*sync.Mutex // per-identifier serialization
}

// NewPipeline wires the export flow. db and uploader may be nil.
func NewPipeline(exporter Exporter, retry RetryPolicy, comb *combiner.Combiner,
	db database.Database, uploader Uploader, downloadsPath string, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		exporter:      exporter,
		retry:         retry,
		combiner:      comb,
		db:            db,
		uploader:      uploader,
		downloadsPath: downloadsPath,
		sem:           semaphore.NewWeighted(int64(concurrency)),
		inflight:      make(map[string]*sync.Mutex),
	}
}

// Run executes the pipeline for ev. It blocks until the pipeline finishes;
// the registry calls it from the fired timer's goroutine.
func (p *Pipeline) Run(ev events.Event) {
	lock := p.identifierLock(ev.Identifier)
	lock.Lock()
	defer lock.Unlock()

	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		log.Printf("Pipeline: failed to acquire export slot for event %s: %v", ev.Identifier, err)
		return
	}
	defer p.sem.Release(1)

	job := Job{
		Identifier: ev.Identifier,
		StartTime:  ev.StartTime,
		EndTime:    ev.EndTime,
		Cameras:    ev.Cameras,
		OutputDir:  filepath.Join(p.downloadsPath, SanitizeIdentifier(ev.Identifier)),
	}

	rec := database.ExportRecord{
		ID:         uuid.NewString(),
		Identifier: ev.Identifier,
		StartTime:  ev.StartTime,
		EndTime:    ev.EndTime,
		Cameras:    strings.Join(ev.Cameras, ","),
		Status:     database.StatusExporting,
		OutputPath: job.OutputDir,
		CreatedAt:  time.Now(),
	}
	p.createRecord(rec)

	attempts, err := p.retry.Run(p.exporter, job)
	rec.Attempts = attempts
	if err != nil {
		rec.Status = database.StatusFailed
		rec.ErrorMessage = err.Error()
		p.finishRecord(rec)
		return
	}

	merged, err := p.combiner.CombineDirectory(job.OutputDir)
	if err != nil {
		// Combination failures are non-fatal to the event's completion
		log.Printf("Pipeline: combination failed for event %s: %v", ev.Identifier, err)
		rec.ErrorMessage = err.Error()
	}
	rec.MergedFiles = strings.Join(merged, ",")

	if p.uploader != nil && len(merged) > 0 {
		rec.UploadedURLs = strings.Join(p.uploadMerged(ev.Identifier, merged), ",")
	}

	rec.Status = database.StatusCompleted
	p.finishRecord(rec)
	log.Printf("Pipeline: event %s finished with %d merged file(s) after %d attempt(s)",
		ev.Identifier, len(merged), attempts)
}

// uploadMerged pushes merged clips to remote storage; failures are logged
// and skipped.
func (p *Pipeline) uploadMerged(identifier string, merged []string) []string {
	var urls []string
	for _, path := range merged {
		key := "exports/" + SanitizeIdentifier(identifier) + "/" + filepath.Base(path)
		url, err := p.uploader.UploadFile(path, key)
		if err != nil {
			log.Printf("Pipeline: failed to upload %s: %v", path, err)
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

func (p *Pipeline) identifierLock(identifier string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.inflight[identifier]
	if !ok {
		lock = &sync.Mutex{}
		p.inflight[identifier] = lock
	}
	return lock
}

func (p *Pipeline) createRecord(rec database.ExportRecord) {
	if p.db == nil {
		return
	}
	if err := p.db.CreateExport(rec); err != nil {
		log.Printf("Pipeline: failed to create export record for event %s: %v", rec.Identifier, err)
	}
}

func (p *Pipeline) finishRecord(rec database.ExportRecord) {
	if p.db == nil {
		return
	}
	now := time.Now()
	rec.FinishedAt = &now
	if err := p.db.UpdateExport(rec); err != nil {
		log.Printf("Pipeline: failed to update export record for event %s: %v", rec.Identifier, err)
	}
}

// SanitizeIdentifier maps an event identifier to a filesystem-safe folder
// name. Deterministic so retries and re-invocations land in one directory.
func SanitizeIdentifier(identifier string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, identifier)
}
