package config

import (
	"fmt"
	"slices"
	"strings"
)

// Validate checks the rules of a loaded service: a supported version, a
// name, a default mode, every mode entry declared, and well-formed remotes.
func Validate(svc *Service) error {
	var errs ValidationErrors

	if svc.Version == 0 {
		errs.Add("version", "is required")
	} else if !slices.Contains(SupportedVersions, svc.Version) {
		errs.Add("version", "unsupported version %v", svc.Version)
	}

	if strings.TrimSpace(svc.Name) == "" {
		errs.Add("service_name", "is required")
	}

	if _, ok := svc.Modes[DefaultMode]; !ok {
		errs.Add("modes", "a %q mode is required", DefaultMode)
	}

	for _, mode := range svc.ModeNames() {
		seen := make(map[string]bool)
		for _, name := range svc.Modes[mode] {
			if _, ok := svc.Dependencies[name]; !ok {
				errs.Add(fmt.Sprintf("modes.%s", mode), "dependency %q is not defined in dependencies", name)
			}
			if seen[name] {
				errs.Add(fmt.Sprintf("modes.%s", mode), "dependency %q is listed more than once", name)
			}
			seen[name] = true
		}
	}

	for _, name := range svc.DependencyNames() {
		dep := svc.Dependencies[name]
		if dep.Remote == nil {
			continue
		}
		field := fmt.Sprintf("dependencies.%s.remote", name)
		if dep.Remote.RepoName == "" {
			errs.Add(field+".repo_name", "is required")
		}
		if dep.Remote.Branch == "" {
			errs.Add(field+".branch", "is required")
		}
		if dep.Remote.RepoLink == "" {
			errs.Add(field+".repo_link", "is required")
		}
		if _, ok := svc.Programs[name]; ok {
			errs.Add(fmt.Sprintf("dependencies.%s", name), "remote dependency conflicts with a supervisor program of the same name")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
