package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type definitionsFile struct {
	Streams   []StreamDefinition `yaml:"streams"`
	Interests []struct {
		Class         string   `yaml:"class"`
		Label         string   `yaml:"label"`
		Enabled       *bool    `yaml:"enabled"`
		MinConfidence *float64 `yaml:"min_confidence"`
		AlertSound    string   `yaml:"alert_sound"`
	} `yaml:"interests"`
}

// LoadDefinitions reads streams and interests from a YAML file. Interests are
// enabled unless stated otherwise and fall back to defaultConfidence.
func LoadDefinitions(path string, defaultConfidence float64) ([]StreamDefinition, []Interest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read definitions: %w", err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse definitions %s: %w", path, err)
	}

	streams := file.Streams
	for i := range streams {
		if streams[i].Label == "" {
			streams[i].Label = streams[i].ID
		}
	}

	interests := make([]Interest, 0, len(file.Interests))
	for _, raw := range file.Interests {
		if raw.Class == "" {
			return nil, nil, fmt.Errorf("interest without class in %s", path)
		}
		interest := Interest{
			Class:         raw.Class,
			Label:         raw.Label,
			Enabled:       true,
			MinConfidence: defaultConfidence,
			AlertSound:    raw.AlertSound,
		}
		if interest.Label == "" {
			interest.Label = raw.Class
		}
		if raw.Enabled != nil {
			interest.Enabled = *raw.Enabled
		}
		if raw.MinConfidence != nil {
			interest.MinConfidence = *raw.MinConfidence
		}
		interests = append(interests, interest)
	}
	return streams, interests, nil
}

// Watch reloads the interests in path on every write and hands them to apply.
// Parse failures go to onError and keep the previous interests in effect.
// It blocks until ctx is done.
func Watch(ctx context.Context, path string, defaultConfidence float64, apply func([]Interest), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			_, interests, err := LoadDefinitions(path, defaultConfidence)
			if err != nil {
				onError(err)
				continue
			}
			apply(interests)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onError(err)
		}
	}
}
