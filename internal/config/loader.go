package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"devservices/pkg/logging"

	"gopkg.in/yaml.v3"
)

// ConfigPath returns the path of the service config inside a repository.
func ConfigPath(repoPath string) string {
	return filepath.Join(repoPath, DirName, ConfigFileName)
}

// ProgramsPath returns the path of the supervisor programs file inside a repository.
func ProgramsPath(repoPath string) string {
	return filepath.Join(repoPath, DirName, ProgramsFileName)
}

// LoadService loads and validates the service config of the repository at
// repoPath. Every failure is a *ConfigError.
func LoadService(repoPath string) (*Service, error) {
	configPath := ConfigPath(repoPath)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newNotFoundError(configPath, "config file not found",
				fmt.Sprintf("Create %s/%s in the repository", DirName, ConfigFileName),
				"Check that the path points at the repository root")
		}
		return nil, &ConfigError{
			FilePath:  configPath,
			ErrorType: ErrorTypeIO,
			Message:   "failed to read config file",
			Details:   err.Error(),
		}
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, newParseError(configPath, err)
	}
	if raw.ServiceConfig == nil {
		return nil, newParseError(configPath, fmt.Errorf("missing %q key", serviceConfigKey))
	}

	svc := &Service{
		Name:         raw.ServiceConfig.ServiceName,
		Version:      raw.ServiceConfig.Version,
		RepoPath:     repoPath,
		ConfigPath:   configPath,
		Dependencies: make(map[string]Dependency, len(raw.ServiceConfig.Dependencies)),
		Modes:        raw.ServiceConfig.Modes,
		Programs:     map[string]Program{},
	}
	if svc.Modes == nil {
		svc.Modes = map[string][]string{}
	}

	programsPath := ProgramsPath(repoPath)
	if _, statErr := os.Stat(programsPath); statErr == nil {
		programs, err := ParseProgramsFile(programsPath)
		if err != nil {
			return nil, &ConfigError{
				FilePath:  programsPath,
				Service:   svc.Name,
				ErrorType: ErrorTypeParse,
				Message:   "failed to parse supervisor programs",
				Details:   err.Error(),
			}
		}
		svc.ProgramsPath = programsPath
		for _, p := range programs {
			svc.Programs[p.Name] = p
		}
	}

	for name, dep := range raw.ServiceConfig.Dependencies {
		dep.Name = name
		dep.Kind = inferKind(dep, svc.Programs)
		svc.Dependencies[name] = dep
	}

	if err := Validate(svc); err != nil {
		return nil, &ConfigError{
			FilePath:  configPath,
			Service:   svc.Name,
			ErrorType: ErrorTypeValidation,
			Message:   err.Error(),
			Suggestions: []string{
				fmt.Sprintf("Declare every dependency listed under modes in %s.dependencies", serviceConfigKey),
				fmt.Sprintf("Declare a %q mode", DefaultMode),
			},
		}
	}

	logging.Debug("Config", "Loaded service %s from %s (%d dependencies, %d modes)",
		svc.Name, configPath, len(svc.Dependencies), len(svc.Modes))
	return svc, nil
}

func inferKind(dep Dependency, programs map[string]Program) DependencyKind {
	if dep.Remote != nil {
		return KindRemote
	}
	if _, ok := programs[dep.Name]; ok {
		return KindSupervisor
	}
	return KindLocal
}
