package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"devservices/internal/config"
	"devservices/internal/health"
	"devservices/pkg/logging"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"
)

const subsystem = "Supervisor"

const (
	confSuffix   = ".processes.conf"
	readyTimeout = 10 * time.Second
	readyPoll    = 500 * time.Millisecond
)

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// ProgramSpec names one program of a project's programs.conf.
type ProgramSpec struct {
	Project      string
	RepoPath     string
	ProgramsPath string
	Program      string
}

// Handle returns the identifier of the program once started.
func (s ProgramSpec) Handle() string {
	return s.Project + ":" + s.Program
}

// ParseHandle splits a handle into project and program.
func ParseHandle(handle string) (project, program string, err error) {
	project, program, ok := strings.Cut(handle, ":")
	if !ok || project == "" || program == "" {
		return "", "", fmt.Errorf("invalid supervisor handle %q", handle)
	}
	return project, program, nil
}

// Manager owns the generated configs and daemons under one directory.
type Manager struct {
	dir string
}

// NewManager returns a Manager keeping its files in dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

func (m *Manager) confPath(project string) string {
	return filepath.Join(m.dir, project+confSuffix)
}

func (m *Manager) ctl(ctx context.Context, project string, args ...string) (string, error) {
	full := append([]string{"-c", m.confPath(project)}, args...)
	logging.Debug(subsystem, "Running: supervisorctl %s", strings.Join(full, " "))
	out, err := execCommandContext(ctx, "supervisorctl", full...).CombinedOutput()
	return string(out), err
}

// WriteConfig renders the supervisord config for spec's project.
func (m *Manager) WriteConfig(spec ProgramSpec) (string, error) {
	programs, err := config.ParseProgramsFile(spec.ProgramsPath)
	if err != nil {
		return "", fmt.Errorf("failed to read programs for %s: %w", spec.Project, err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create supervisor directory: %w", err)
	}

	data, err := render(templateData{
		Dir:     spec.RepoPath,
		Socket:  filepath.Join(m.dir, spec.Project+".sock"),
		PIDFile: filepath.Join(m.dir, spec.Project+".pid"),
		LogFile: filepath.Join(m.dir, spec.Project+".log"),
	}, programs)
	if err != nil {
		return "", err
	}

	path := m.confPath(spec.Project)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func (m *Manager) daemonRunning(ctx context.Context, project string) bool {
	out, err := m.ctl(ctx, project, "pid")
	if err != nil {
		return false
	}
	pid := strings.TrimSpace(out)
	return pid != "" && strings.Trim(pid, "0123456789") == ""
}

// ensureDaemon starts supervisord for project or reloads its config.
func (m *Manager) ensureDaemon(ctx context.Context, project string) error {
	if m.daemonRunning(ctx, project) {
		if out, err := m.ctl(ctx, project, "update"); err != nil {
			return fmt.Errorf("failed to reload supervisor config: %w\nOutput: %s", err, strings.TrimSpace(out))
		}
		return nil
	}

	logging.Info(subsystem, "Starting supervisord for %s", project)
	cmd := execCommandContext(ctx, "supervisord", "-c", m.confPath(project))
	if out, err := cmd.CombinedOutput(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("supervisord command not found, is supervisor installed?")
		}
		return fmt.Errorf("failed to start supervisord: %w\nOutput: %s", err, strings.TrimSpace(string(out)))
	}

	err := wait.PollUntilContextTimeout(ctx, readyPoll, readyTimeout, true, func(ctx context.Context) (bool, error) {
		return m.daemonRunning(ctx, project), nil
	})
	if err != nil {
		return fmt.Errorf("supervisord for %s did not become ready within %s: %w", project, readyTimeout, err)
	}
	return nil
}

// Start renders the config, makes sure the daemon runs and starts the program.
func (m *Manager) Start(ctx context.Context, spec ProgramSpec) (string, error) {
	if _, err := m.WriteConfig(spec); err != nil {
		return "", err
	}
	if err := m.ensureDaemon(ctx, spec.Project); err != nil {
		return "", err
	}

	status, _ := m.Health(ctx, spec.Handle())
	if status == health.StatusHealthy {
		logging.Debug(subsystem, "Program %s already running", spec.Handle())
		return spec.Handle(), nil
	}

	logging.Info(subsystem, "Starting program %s", spec.Handle())
	if out, err := m.ctl(ctx, spec.Project, "start", spec.Program); err != nil {
		return "", fmt.Errorf("failed to start program %s: %w\nOutput: %s", spec.Program, err, strings.TrimSpace(out))
	}
	return spec.Handle(), nil
}

// Stop stops a program. A missing daemon counts as stopped.
func (m *Manager) Stop(ctx context.Context, handle string) error {
	project, program, err := ParseHandle(handle)
	if err != nil {
		return err
	}
	if !m.daemonRunning(ctx, project) {
		logging.Debug(subsystem, "Supervisor for %s not running, nothing to stop", project)
		return nil
	}
	logging.Info(subsystem, "Stopping program %s", handle)
	if out, err := m.ctl(ctx, project, "stop", program); err != nil {
		return fmt.Errorf("failed to stop program %s: %w\nOutput: %s", program, err, strings.TrimSpace(out))
	}
	return nil
}

// Health maps the supervisord process state of a program.
func (m *Manager) Health(ctx context.Context, handle string) (health.Status, error) {
	project, program, err := ParseHandle(handle)
	if err != nil {
		return health.StatusUnhealthy, err
	}
	// status exits non-zero for stopped programs, so the output decides.
	out, runErr := m.ctl(ctx, project, "status", program)
	if status, ok := parseStatus(out, program); ok {
		return status, nil
	}
	if runErr == nil {
		runErr = fmt.Errorf("unexpected status output %q", strings.TrimSpace(out))
	}
	return health.StatusUnhealthy, fmt.Errorf("failed to get status of %s: %w", handle, runErr)
}

func parseStatus(out, program string) (health.Status, bool) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != program {
			continue
		}
		switch fields[1] {
		case "RUNNING":
			return health.StatusHealthy, true
		case "STARTING", "BACKOFF":
			return health.StatusStarting, true
		case "STOPPED", "STOPPING", "EXITED":
			return health.StatusStopped, true
		case "FATAL":
			return health.StatusUnhealthy, true
		default:
			return health.StatusUnknown, true
		}
	}
	return "", false
}

// Logs returns the last tail lines of the program's stdout.
func (m *Manager) Logs(ctx context.Context, handle string, tail int) (string, error) {
	project, program, err := ParseHandle(handle)
	if err != nil {
		return "", err
	}
	out, err := m.ctl(ctx, project, "tail", program)
	if err != nil {
		return "", fmt.Errorf("failed to get logs for %s: %w", program, err)
	}
	return lastLines(out, tail), nil
}

func lastLines(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n") + "\n"
}

// Purge shuts down the daemon of project, or of every project when empty,
// and removes the generated files.
func (m *Manager) Purge(ctx context.Context, project string) error {
	projects := []string{project}
	if project == "" {
		matches, err := filepath.Glob(filepath.Join(m.dir, "*"+confSuffix))
		if err != nil {
			return err
		}
		projects = projects[:0]
		for _, match := range matches {
			projects = append(projects, strings.TrimSuffix(filepath.Base(match), confSuffix))
		}
	}

	var errs []error
	for _, p := range projects {
		if _, err := os.Stat(m.confPath(p)); err != nil {
			continue
		}
		if m.daemonRunning(ctx, p) {
			logging.Info(subsystem, "Shutting down supervisord for %s", p)
			if out, err := m.ctl(ctx, p, "shutdown"); err != nil {
				errs = append(errs, fmt.Errorf("failed to shut down supervisor for %s: %w\nOutput: %s", p, err, strings.TrimSpace(out)))
				continue
			}
		}
		for _, suffix := range []string{confSuffix, ".sock", ".pid", ".log"} {
			if err := os.Remove(filepath.Join(m.dir, p+suffix)); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
		}
	}
	return utilerrors.NewAggregate(errs)
}
