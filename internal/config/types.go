package config

import "sort"

const (
	// DirName is the directory inside a repository that holds devservices files.
	DirName = "devservices"
	// ConfigFileName is the compose file carrying the service configuration.
	ConfigFileName = "config.yml"
	// ProgramsFileName is the supervisor programs file.
	ProgramsFileName = "programs.conf"
	// DefaultMode is the mode used when none is requested.
	DefaultMode = "default"

	serviceConfigKey = "x-sentry-service-config"
)

// SupportedVersions lists the config versions this build understands.
var SupportedVersions = []float64{0.1}

// DependencyKind tags how a dependency is executed.
type DependencyKind string

const (
	// KindLocal is a compose service declared in the owning service's config.
	KindLocal DependencyKind = "local"
	// KindRemote is defined by another repository's config and fetched on demand.
	KindRemote DependencyKind = "remote"
	// KindSupervisor is a program from the owning repository's programs.conf.
	KindSupervisor DependencyKind = "supervisor-program"
)

// RemoteConfig points at the repository that defines a remote dependency.
type RemoteConfig struct {
	RepoName string `yaml:"repo_name" json:"repoName"`
	Branch   string `yaml:"branch" json:"branch"`
	RepoLink string `yaml:"repo_link" json:"repoLink"`
	Mode     string `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// SelectedMode returns the mode of the remote's own config to activate.
func (r RemoteConfig) SelectedMode() string {
	if r.Mode == "" {
		return DefaultMode
	}
	return r.Mode
}

// Key identifies the repository checkout, independent of the selected mode.
func (r RemoteConfig) Key() string {
	return r.RepoName + "@" + r.Branch
}

// Dependency is one declared dependency of a service. Remote is non-nil only
// for KindRemote.
type Dependency struct {
	Name        string         `yaml:"-" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Remote      *RemoteConfig  `yaml:"remote,omitempty" json:"remote,omitempty"`
	Kind        DependencyKind `yaml:"-" json:"kind"`
}

// Program is a [program:x] section of a supervisor programs file.
type Program struct {
	Name    string
	Command string
	Options map[string]string
}

// Service is a parsed service configuration.
type Service struct {
	Name       string
	Version    float64
	RepoPath   string
	ConfigPath string
	// ProgramsPath is empty when the repository has no programs.conf.
	ProgramsPath string
	Dependencies map[string]Dependency
	Modes        map[string][]string
	Programs     map[string]Program
}

// DependencyNames returns the declared dependency names, sorted.
func (s *Service) DependencyNames() []string {
	names := make([]string, 0, len(s.Dependencies))
	for name := range s.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModeNames returns the declared mode names, sorted.
func (s *Service) ModeNames() []string {
	names := make([]string, 0, len(s.Modes))
	for name := range s.Modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// rawFile mirrors the parts of config.yml we care about.
type rawFile struct {
	ServiceConfig *rawServiceConfig `yaml:"x-sentry-service-config"`
}

type rawServiceConfig struct {
	Version      float64               `yaml:"version"`
	ServiceName  string                `yaml:"service_name"`
	Dependencies map[string]Dependency `yaml:"dependencies"`
	Modes        map[string][]string   `yaml:"modes"`
}
