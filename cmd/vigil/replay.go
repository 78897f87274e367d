package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/vigil/pkg/models"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Feed recorded validation events through the learning core",
	Long: `Read validation events from a file and feed them through the learning
core, then print the resulting counters. Useful for seeding a learning
store from historical data or for inspecting what a stream of outcomes
teaches the core.

The file may be a YAML list of events (.yaml/.yml) or JSON lines
(.jsonl), using the event wire fields: event_type, context, success,
confidence, source_system, and optionally event_id, timestamp, result,
metadata. Missing IDs and timestamps are generated.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	events, err := readEvents(args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no events found in %s", args[0])
	}

	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Shutdown()

	for _, event := range events {
		c.Learn(event)
	}
	c.Flush()

	m := c.Metrics()
	fmt.Printf("Replayed %d events: %d processed, %d errors, %d dropped\n",
		len(events), m.EventsProcessed(), m.ErrorsEncountered(), m.EventsDropped())
	return nil
}

// readEvents loads events from a YAML list or a JSON-lines file.
func readEvents(path string) ([]*models.ValidationEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return readYAMLEvents(data)
	case ".jsonl":
		return readJSONLEvents(data)
	default:
		return nil, fmt.Errorf("unsupported events file %s, want .yaml, .yml, or .jsonl", path)
	}
}

func readYAMLEvents(data []byte) ([]*models.ValidationEvent, error) {
	// Decode through the JSON field names so YAML and JSONL files share
	// one wire format.
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML events: %w", err)
	}

	events := make([]*models.ValidationEvent, 0, len(raw))
	for i, m := range raw {
		encoded, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		event := &models.ValidationEvent{}
		if err := json.Unmarshal(encoded, event); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		fillEventDefaults(event)
		events = append(events, event)
	}
	return events, nil
}

func readJSONLEvents(data []byte) ([]*models.ValidationEvent, error) {
	var events []*models.ValidationEvent
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		event := &models.ValidationEvent{}
		if err := json.Unmarshal(text, event); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fillEventDefaults(event)
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

func fillEventDefaults(event *models.ValidationEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Context == nil {
		event.Context = map[string]any{}
	}
}
