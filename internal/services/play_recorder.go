package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/selfmusic/player/internal/storage"
	"github.com/selfmusic/player/pkg/types"
)

// PlayRecorderService reports plays to the backend, queuing them locally
// when the network is down and flushing the backlog on a timer.
type PlayRecorderService struct {
	remote  types.PlayRecorder
	storage *storage.Database
	debug   bool
	ticker  *time.Ticker
	stopCh  chan struct{}
}

func NewPlayRecorderService(remote types.PlayRecorder, storage *storage.Database, debug bool) *PlayRecorderService {
	return &PlayRecorderService{
		remote:  remote,
		storage: storage,
		debug:   debug,
		stopCh:  make(chan struct{}),
	}
}

func (p *PlayRecorderService) Start() {
	if p.ticker != nil {
		return
	}

	p.ticker = time.NewTicker(5 * time.Minute)
	ticker := p.ticker

	go func() {
		time.Sleep(30 * time.Second)
		p.flushBacklog()

		for {
			select {
			case <-ticker.C:
				p.flushBacklog()
			case <-p.stopCh:
				return
			}
		}
	}()

	if p.debug {
		log.Printf("[PLAY_SYNC] Play report service started")
	}
}

func (p *PlayRecorderService) Stop() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}

	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}

	if p.debug {
		log.Printf("[PLAY_SYNC] Play report service stopped")
	}
}

// RecordPlay sends the report immediately and falls back to the local queue
// when the request fails. The play is never lost unless the local write
// also fails.
func (p *PlayRecorderService) RecordPlay(ctx context.Context, songID string) error {
	if songID == "" {
		return fmt.Errorf("empty song id")
	}

	if err := p.remote.RecordPlay(ctx, songID); err != nil {
		if p.debug {
			log.Printf("[PLAY_SYNC] Immediate report failed for %s, queuing locally: %v", songID, err)
		}
		return p.queueLocal(ctx, songID, false)
	}

	if err := p.queueLocal(ctx, songID, true); err != nil && p.debug {
		log.Printf("[PLAY_SYNC] Failed to record synced play locally for %s: %v", songID, err)
	}
	return nil
}

func (p *PlayRecorderService) queueLocal(ctx context.Context, songID string, synced bool) error {
	_, err := p.storage.GetDB().ExecContext(ctx,
		`INSERT INTO play_reports (song_id, played_at, synced) VALUES (?, ?, ?)`,
		songID, time.Now().UTC(), synced)
	return err
}

func (p *PlayRecorderService) flushBacklog() {
	ctx := context.Background()

	rows, err := p.storage.GetDB().QueryContext(ctx,
		`SELECT id, song_id FROM play_reports WHERE synced = FALSE ORDER BY played_at ASC LIMIT 50`)
	if err != nil {
		if p.debug {
			log.Printf("[PLAY_SYNC] Failed to query unsynced reports: %v", err)
		}
		return
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Printf("Failed to close rows: %v", closeErr)
		}
	}()

	type report struct {
		id     int64
		songID string
	}
	var pending []report

	for rows.Next() {
		var r report
		if err := rows.Scan(&r.id, &r.songID); err != nil {
			if p.debug {
				log.Printf("[PLAY_SYNC] Failed to scan report: %v", err)
			}
			continue
		}
		pending = append(pending, r)
	}

	if len(pending) == 0 {
		return
	}

	if p.debug {
		log.Printf("[PLAY_SYNC] Flushing %d queued play reports", len(pending))
	}

	synced := 0
	for _, r := range pending {
		if err := p.remote.RecordPlay(ctx, r.songID); err != nil {
			if p.debug {
				log.Printf("[PLAY_SYNC] Failed to flush report for %s: %v", r.songID, err)
			}
			continue
		}

		if _, err := p.storage.GetDB().ExecContext(ctx,
			`UPDATE play_reports SET synced = TRUE WHERE id = ?`, r.id); err != nil {
			if p.debug {
				log.Printf("[PLAY_SYNC] Failed to mark report synced: %v", err)
			}
			continue
		}

		synced++
		time.Sleep(100 * time.Millisecond)
	}

	if p.debug {
		log.Printf("[PLAY_SYNC] Flushed %d/%d play reports", synced, len(pending))
	}
}

func (p *PlayRecorderService) ForceSyncNow() {
	go p.flushBacklog()
}
