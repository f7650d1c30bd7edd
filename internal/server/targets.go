package server

import (
	"context"
	"fmt"
	"os"

	"github.com/commandx/backend/internal/remote"
	"github.com/commandx/backend/internal/router"
	"github.com/commandx/backend/internal/workspace"
	"github.com/goccy/go-yaml"
)

type targetEntry struct {
	ID   int64  `yaml:"id"`
	Kind string `yaml:"kind"` // "remote" or "workspace"
	Name string `yaml:"name"`

	// Remote targets.
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	PrivateKeyFile string `yaml:"private_key_file"`
	Passphrase     string `yaml:"passphrase"`

	// Workspace targets.
	TenantID int64 `yaml:"tenant_id"`
	CPUCores int   `yaml:"cpu_cores"`
	MemoryGB int   `yaml:"memory_gb"`
	DiskGB   int   `yaml:"disk_gb"`
}

type targetsFile struct {
	Targets []targetEntry `yaml:"targets"`
}

// FileSource resolves target identities from a YAML inventory loaded
// at startup.
type FileSource struct {
	targets map[int64]router.Target
}

// LoadTargets reads the inventory at path. A missing file yields an
// empty source, not an error, so a fresh install starts cleanly.
func LoadTargets(path string) (*FileSource, error) {
	src := &FileSource{targets: make(map[int64]router.Target)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return src, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var file targetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse targets file: %w", err)
	}

	for _, entry := range file.Targets {
		target, err := entry.toTarget()
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", entry.ID, err)
		}
		src.targets[entry.ID] = target
	}
	return src, nil
}

func (e targetEntry) toTarget() (router.Target, error) {
	switch e.Kind {
	case "remote":
		creds := remote.Credentials{
			TargetID:   e.ID,
			Host:       e.Host,
			Port:       e.Port,
			User:       e.User,
			Password:   e.Password,
			Passphrase: e.Passphrase,
		}
		if e.PrivateKeyFile != "" {
			key, err := os.ReadFile(e.PrivateKeyFile)
			if err != nil {
				return router.Target{}, fmt.Errorf("read private key: %w", err)
			}
			creds.PrivateKey = string(key)
		}
		if creds.Host == "" {
			return router.Target{}, fmt.Errorf("remote target needs a host")
		}
		return router.Target{Kind: router.KindRemote, Credentials: creds}, nil
	case "workspace":
		return router.Target{
			Kind: router.KindWorkspace,
			Workspace: workspace.Workspace{
				ID:       e.ID,
				TenantID: e.TenantID,
				Name:     e.Name,
				CPUCores: e.CPUCores,
				MemoryGB: e.MemoryGB,
				DiskGB:   e.DiskGB,
			},
		}, nil
	default:
		return router.Target{}, fmt.Errorf("unknown kind %q", e.Kind)
	}
}

// Lookup implements router.CredentialSource.
func (s *FileSource) Lookup(_ context.Context, id int64) (router.Target, error) {
	target, ok := s.targets[id]
	if !ok {
		return router.Target{}, fmt.Errorf("target %d is not in the inventory", id)
	}
	return target, nil
}

// IDs returns every known target identity, for background sampling.
func (s *FileSource) IDs() []int64 {
	ids := make([]int64, 0, len(s.targets))
	for id := range s.targets {
		ids = append(ids, id)
	}
	return ids
}
