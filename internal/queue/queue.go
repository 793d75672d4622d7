/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package queue maintains the persistent play queue and drives the
// playback engine through it: next-track preloading, advancement on
// track end, and skip-on-error.
package queue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/segue/internal/engine"
	"github.com/friendsincode/segue/internal/models"
)

var (
	ErrEmptyQueue       = errors.New("queue is empty")
	ErrOutsideMediaRoot = errors.New("path escapes the media root")
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".webm": true,
	".mov":  true,
	".avi":  true,
}

// Queue owns the queue_entries table and follows engine events. All
// event handling runs on the engine's dispatcher goroutine; public
// methods may run on any goroutine.
type Queue struct {
	logger zerolog.Logger
	db     *gorm.DB
	eng    *engine.Engine
	root   string

	mu          sync.Mutex
	unsubscribe func()
}

// New wires a queue to the engine's event surface. mediaRoot, when
// non-empty, confines Add to files under that directory; relative
// paths are resolved against it.
func New(database *gorm.DB, eng *engine.Engine, mediaRoot string, logger zerolog.Logger) *Queue {
	root := ""
	if mediaRoot != "" {
		if abs, err := filepath.Abs(mediaRoot); err == nil {
			root = abs
		}
	}
	q := &Queue{
		logger: logger.With().Str("component", "queue").Logger(),
		db:     database,
		eng:    eng,
		root:   root,
	}
	q.unsubscribe = eng.Subscribe(q.handleEvent)
	return q
}

// Close detaches the queue from the engine.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unsubscribe != nil {
		q.unsubscribe()
		q.unsubscribe = nil
	}
}

// Add appends a media file to the queue, reading title and artist from
// embedded tags when present.
func (q *Queue) Add(path string) (*models.QueueEntry, error) {
	path, err := q.resolvePath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	title, artist := readTags(path)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	entry := &models.QueueEntry{
		ID:     uuid.NewString(),
		Path:   path,
		Title:  title,
		Artist: artist,
		Kind:   kindForPath(path),
		Status: models.QueuePending,
	}

	err = q.db.Transaction(func(tx *gorm.DB) error {
		var maxPos int
		row := tx.Model(&models.QueueEntry{}).Select("COALESCE(MAX(position), 0)").Row()
		if err := row.Scan(&maxPos); err != nil {
			return err
		}
		entry.Position = maxPos + 1
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("persist queue entry: %w", err)
	}

	q.logger.Info().Str("path", path).Int("position", entry.Position).Msg("queued")

	// If something is already rolling, keep the standby primed.
	q.maybePreload()
	return entry, nil
}

// Entries returns the queue in position order.
func (q *Queue) Entries() ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	if err := q.db.Order("position asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Remove deletes a pending entry. The currently playing entry cannot
// be removed; callers stop or skip instead.
func (q *Queue) Remove(id string) error {
	res := q.db.Where("id = ? AND status <> ?", id, models.QueuePlaying).Delete(&models.QueueEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Clear stops playback and empties the queue.
func (q *Queue) Clear() error {
	q.eng.Stop()
	return q.db.Where("1 = 1").Delete(&models.QueueEntry{}).Error
}

// Start begins playback from the first pending entry.
func (q *Queue) Start() error {
	return q.playNextPending()
}

// Skip abandons the current track and starts the next pending entry.
func (q *Queue) Skip() error {
	q.db.Model(&models.QueueEntry{}).
		Where("status = ?", models.QueuePlaying).
		Update("status", models.QueuePlayed)
	return q.playNextPending()
}

func (q *Queue) playNextPending() error {
	next, err := q.firstPending()
	if err != nil {
		return err
	}
	if err := q.eng.Play(trackFor(next)); err != nil {
		return err
	}
	q.db.Model(next).Update("status", models.QueuePlaying)
	q.maybePreload()
	return nil
}

func (q *Queue) firstPending() (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := q.db.Where("status = ?", models.QueuePending).Order("position asc").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmptyQueue
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// maybePreload keeps the engine's standby slot loaded with the next
// pending entry whenever a track is active.
func (q *Queue) maybePreload() {
	st := q.eng.Status()
	if st.Track == nil || st.StandbyTrack != nil {
		return
	}
	next, err := q.firstPending()
	if err != nil {
		return
	}
	if next.ID == st.Track.ID {
		return
	}
	if err := q.eng.PreloadNextAsync(trackFor(next)); err != nil {
		q.logger.Warn().Err(err).Str("path", next.Path).Msg("preload rejected")
	}
}

// handleEvent runs on the engine dispatcher goroutine, so it may call
// engine methods freely.
func (q *Queue) handleEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventMediaEnded:
		q.onMediaEnded(ev.Track)
	case engine.EventPlaybackError:
		q.onPlaybackError(ev)
	case engine.EventStateChanged:
		if ev.OldState == engine.StateCrossfading && ev.NewState == engine.StatePlaying {
			// A swap just happened: the new active entry is playing.
			if st := q.eng.Status(); st.Track != nil {
				q.db.Model(&models.QueueEntry{}).
					Where("id = ?", st.Track.ID).
					Update("status", models.QueuePlaying)
			}
		}
	}
}

func (q *Queue) onMediaEnded(t *engine.Track) {
	if t == nil {
		return
	}
	q.db.Model(&models.QueueEntry{}).
		Where("id = ?", t.ID).
		Update("status", models.QueuePlayed)
	q.db.Create(&models.PlayHistory{
		ID:       uuid.NewString(),
		Path:     t.Path,
		Title:    t.Title,
		Artist:   t.Artist,
		PlayedAt: time.Now(),
	})

	// A crossfade handoff leaves the engine Playing; only a natural end
	// without a preloaded successor needs an explicit advance.
	if q.eng.State() == engine.StateStopped {
		if err := q.playNextPending(); err != nil && !errors.Is(err, ErrEmptyQueue) {
			q.logger.Error().Err(err).Msg("advance after track end")
		}
		return
	}
	q.maybePreload()
}

func (q *Queue) onPlaybackError(ev engine.Event) {
	if ev.Track == nil {
		return
	}
	q.db.Model(&models.QueueEntry{}).
		Where("id = ?", ev.Track.ID).
		Updates(map[string]any{
			"status": models.QueueFailed,
			"error":  ev.Message,
		})
	q.logger.Warn().Str("path", ev.Track.Path).Str("error", ev.Message).Msg("entry failed")

	// An active-track failure halts the engine; skip to the next entry.
	// A failed preload candidate needs only a replacement standby.
	if q.eng.State() == engine.StateError {
		if err := q.playNextPending(); err != nil && !errors.Is(err, ErrEmptyQueue) {
			q.logger.Error().Err(err).Msg("skip after playback error")
		}
		return
	}
	q.maybePreload()
}

// resolvePath anchors relative paths at the media root and rejects
// anything that escapes it. An unset root leaves paths untouched.
func (q *Queue) resolvePath(path string) (string, error) {
	if q.root == "" {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(q.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(q.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideMediaRoot, path)
	}
	return abs, nil
}

func trackFor(e *models.QueueEntry) *engine.Track {
	mt := engine.MediaAudio
	if e.Kind == models.MediaKindVideo {
		mt = engine.MediaVideo
	}
	return &engine.Track{
		ID:     e.ID,
		Path:   e.Path,
		Title:  e.Title,
		Artist: e.Artist,
		Type:   mt,
	}
}

func kindForPath(path string) models.MediaKind {
	if videoExtensions[strings.ToLower(filepath.Ext(path))] {
		return models.MediaKindVideo
	}
	return models.MediaKindAudio
}

func readTags(path string) (title, artist string) {
	f, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer f.Close()
	m, err := tag.ReadFrom(f)
	if err != nil {
		return "", ""
	}
	return m.Title(), m.Artist()
}
