package launcher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Norgate-AV/gqlpipe/internal/config"
)

// JobExtension is the file extension of a launcher artifact
const JobExtension = ".json"

// Job is a launcher artifact: the description of one generator invocation,
// materialized by the server phase and executed by the client phase. The
// destination directory is not part of it; it is appended as the single
// positional argument at invocation time.
type Job struct {
	// Name is the entry point reference the job answers to
	Name string `json:"name"`

	// Command is the generator executable
	Command string `json:"command"`

	// Args are passed before the destination directory
	Args []string `json:"args"`

	// WorkDir is the server module directory the generator runs in
	WorkDir string `json:"work_dir"`

	// Env holds extra KEY=VALUE pairs for the generator process
	Env []string `json:"env,omitempty"`
}

// NewJob describes the invocation of the generator for one target
func NewJob(name string, cfg *config.Config, target config.Target) *Job {
	return &Job{
		Name:    name,
		Command: cfg.Generator.Command,
		Args:    BuildJobArgs(cfg.Generator, target),
		WorkDir: cfg.ModuleDir,
		Env: []string{
			"GQLPIPE_MODULE=" + cfg.Name,
			"GQLPIPE_EXTENSION=" + cfg.Extension,
		},
	}
}

// BuildJobArgs builds the generator arguments for a target, without the
// destination directory
func BuildJobArgs(gen config.Generator, target config.Target) []string {
	var cmdArgs []string
	cmdArgs = append(cmdArgs, gen.Args...)
	cmdArgs = append(cmdArgs, "--api", target.API)
	cmdArgs = append(cmdArgs, "--package", target.PackageName)
	cmdArgs = append(cmdArgs, "--client", target.ClientName)

	for _, kv := range sortedOptions(target.Options) {
		cmdArgs = append(cmdArgs, "--option", kv)
	}

	return cmdArgs
}

// WriteJob stores a job description at path
func WriteJob(path string, job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode launcher %s: %w", job.Name, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create launcher directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write launcher %s: %w", path, err)
	}

	return nil
}

// LoadJob reads a job description
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode launcher %s: %w", path, err)
	}

	if job.Command == "" {
		return nil, fmt.Errorf("launcher %s has no command", path)
	}

	return &job, nil
}

func sortedOptions(opts map[string]string) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+opts[k])
	}

	return out
}
