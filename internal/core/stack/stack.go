// Package stack models the compose deployment the supervisor unit drives:
// file locations, service names, and the container naming convention used to
// recognise stack containers at runtime.
package stack

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyInput  = errors.New("compose file is empty")
	ErrInvalidYAML = errors.New("compose file is not valid YAML")
	ErrNoServices  = errors.New("compose file defines no services")
)

// Stack locates the compose deployment on disk.
type Stack struct {
	// Dir is the directory holding the compose files.
	Dir string

	// Project is the compose project name; container names derive from it.
	Project string

	// ComposeFile is the base compose file (relative to Dir).
	ComposeFile string

	// OverlayFile is the overlay adding the dependent service (relative to Dir).
	OverlayFile string
}

// ComposePath returns the absolute path of the base compose file.
func (s Stack) ComposePath() string {
	return filepath.Join(s.Dir, s.ComposeFile)
}

// OverlayPath returns the absolute path of the overlay compose file.
func (s Stack) OverlayPath() string {
	return filepath.Join(s.Dir, s.OverlayFile)
}

// MatchesStack reports whether a container name follows the stack's naming
// convention. Compose v2 names containers "<project>-<service>-<n>"; older
// releases used underscores.
func (s Stack) MatchesStack(containerName string) bool {
	name := strings.TrimPrefix(containerName, "/")
	return strings.HasPrefix(name, s.Project+"-") || strings.HasPrefix(name, s.Project+"_")
}

// ParseServices parses compose YAML and returns the sorted service names.
// Pure: operates on content only, never touches the filesystem.
func ParseServices(content []byte) ([]string, error) {
	if strings.TrimSpace(string(content)) == "" {
		return nil, ErrEmptyInput
	}

	var dict map[string]interface{}
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if dict == nil {
		return nil, ErrInvalidYAML
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: content,
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("meet", false)
		opts.SkipValidation = true
		opts.SkipInterpolation = true
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	names := make([]string, 0, len(project.Services))
	for _, svc := range project.Services {
		names = append(names, svc.Name)
	}
	sort.Strings(names)
	return names, nil
}
