package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"devservices/pkg/logging"
)

// ListServices returns every service found directly below coderoot, sorted
// by name. Repositories with broken configs are skipped.
func ListServices(coderoot string) ([]*Service, error) {
	entries, err := os.ReadDir(coderoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read coderoot %s: %w", coderoot, err)
	}

	var services []*Service
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		repoPath := filepath.Join(coderoot, entry.Name())
		if _, err := os.Stat(ConfigPath(repoPath)); err != nil {
			continue
		}
		svc, err := LoadService(repoPath)
		if err != nil {
			logging.Debug("Config", "Skipping %s: %v", repoPath, err)
			continue
		}
		services = append(services, svc)
	}

	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services, nil
}

// FindService looks a service up by name below coderoot. The match is case
// insensitive; an unknown name yields a *ConfigError listing what exists.
func FindService(coderoot, name string) (*Service, error) {
	services, err := ListServices(coderoot)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(services))
	for _, svc := range services {
		if strings.EqualFold(svc.Name, name) {
			return svc, nil
		}
		names = append(names, svc.Name)
	}

	suggestion := "No services were found; set coderoot in the settings or " + EnvCoderoot
	if len(names) > 0 {
		suggestion = "Supported services: " + strings.Join(names, ", ")
	}
	return nil, &ConfigError{
		ErrorType:   ErrorTypeNotFound,
		Service:     name,
		Message:     fmt.Sprintf("service %q not found in %s", name, coderoot),
		Suggestions: []string{suggestion},
	}
}

// ResolveService returns the named service, or the service of the repository
// containing dir when name is empty.
func ResolveService(coderoot, name, dir string) (*Service, error) {
	if name != "" {
		return FindService(coderoot, name)
	}
	for current := dir; ; {
		if _, err := os.Stat(ConfigPath(current)); err == nil {
			return LoadService(current)
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return nil, newNotFoundError(dir, "no devservices config found in the current directory or its parents",
		"Pass the service name explicitly",
		fmt.Sprintf("Run from a repository containing %s/%s", DirName, ConfigFileName))
}
