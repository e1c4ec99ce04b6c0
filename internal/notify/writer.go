// Package notify carries promotion events between disambig processes through
// files in a shared events directory. One process writes an event file per
// promotion and any number of watchers consume them.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scrypster/disambig/pkg/types"
)

// TypePromoted is the event type written when an entity leaves the draft tier.
const TypePromoted = "promoted"

// Event is the payload written to an event file.
type Event struct {
	Type       string     `json:"type"`
	Session    string     `json:"session"`
	Kind       types.Kind `json:"kind"`
	Identifier string     `json:"identifier"`
	Tier       types.Tier `json:"tier"`
	Time       int64      `json:"time"`
}

// EventWriter writes event files to {dataPath}/events/.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer for the events directory under dataPath.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events")}
}

// Promoted writes a promotion event for one entity of a session.
func (w *EventWriter) Promoted(session string, kind types.Kind, id string, tier types.Tier) error {
	return w.Notify(Event{
		Type:       TypePromoted,
		Session:    session,
		Kind:       kind,
		Identifier: id,
		Tier:       tier,
	})
}

// Notify writes evt as a new event file. The file is renamed into place so a
// watcher never reads a partial event. Safe to call concurrently.
func (w *EventWriter) Notify(evt Event) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	if evt.Time == 0 {
		evt.Time = time.Now().UnixNano()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: encoding event: %w", err)
	}

	name := fmt.Sprintf("%d-%s-%s.event", evt.Time, evt.Kind, sanitizeID(evt.Identifier))
	tmp, err := os.CreateTemp(w.dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("notify: creating event file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("notify: writing event file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("notify: writing event file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(w.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("notify: publishing event file: %w", err)
	}
	return nil
}

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		switch id[i] {
		case '/', ':', '\\', ' ':
			out[i] = '_'
		default:
			out[i] = id[i]
		}
	}
	return string(out)
}
