// Package store implements the Artifact & Checkpoint Store (spec.md §4.A):
// the on-disk layout under a configurable root, and the atomic
// write-tmp-then-rename protocol that makes the pipeline resumable across
// process restarts.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"joborchestrator/internal/jobmodel"
	"joborchestrator/pkg/logger"
)

const (
	stateFileName      = "state.json"
	checkpointFileName = "checkpoint.json"
	audioFileName      = "audio.wav"
	vocalsFileName     = "vocals.wav"
	srtFileName        = "subtitles.srt"
	thumbnailFileName  = "thumbnail.jpg"
	peaksFileName      = "peaks.json"

	jobIndexFileName = "job_index.json"
	profilesFileName = "profiles.json"
)

// Store is the on-disk Artifact Store rooted at RootDir. It owns no
// in-memory job state of its own (that's internal/registry's job) — it is
// a pure read/write layer over the layout in spec.md §4.A.
type Store struct {
	RootDir string

	mu sync.Mutex // serializes job_index.json / profiles.json read-modify-write
}

// New creates a Store rooted at root, creating the root/jobs/input
// directories if necessary.
func New(root string) (*Store, error) {
	s := &Store{RootDir: root}
	for _, dir := range []string{s.JobsDir(), s.InputDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", dir, err)
		}
	}
	return s, nil
}

// JobsDir is the root's jobs/ directory.
func (s *Store) JobsDir() string { return filepath.Join(s.RootDir, "jobs") }

// InputDir is the root's input/ directory.
func (s *Store) InputDir() string { return filepath.Join(s.RootDir, "input") }

// JobDir is the working directory for a specific job.
func (s *Store) JobDir(jobID string) string { return filepath.Join(s.JobsDir(), jobID) }

func (s *Store) path(jobID, name string) string { return filepath.Join(s.JobDir(jobID), name) }

// EnsureJobDir creates jobs/<id>/ if it doesn't already exist.
func (s *Store) EnsureJobDir(jobID string) error {
	return os.MkdirAll(s.JobDir(jobID), 0o755)
}

// FillPaths populates the derived paths on a Job, given its working dir.
func (s *Store) FillPaths(j *jobmodel.Job) {
	j.Paths = jobmodel.Paths{
		InputPath:      j.Paths.InputPath,
		WorkingDir:     s.JobDir(j.ID),
		AudioPath:      s.path(j.ID, audioFileName),
		VocalsPath:     s.path(j.ID, vocalsFileName),
		OutputSRTPath:  s.path(j.ID, srtFileName),
		CheckpointPath: s.path(j.ID, checkpointFileName),
		ThumbnailPath:  s.path(j.ID, thumbnailFileName),
		PeaksPath:      s.path(j.ID, peaksFileName),
	}
}

// atomicWriteJSON marshals v and writes it to path via write-tmp-then-
// rename, so a crash never leaves a truncated file (spec.md §4.A).
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", path, err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to path via write-tmp-then-rename, the same
// protocol every on-disk artifact in this package uses. Exported so other
// packages writing job artifacts (internal/media's SRT writes,
// internal/pipeline's SRT phase) share one atomicity primitive instead of
// each hand-rolling it.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write tmp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename %s -> %s: %w", tmp, path, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SaveJobState writes state.json for a job, atomically.
func (s *Store) SaveJobState(j jobmodel.Job) error {
	if err := s.EnsureJobDir(j.ID); err != nil {
		return err
	}
	return atomicWriteJSON(s.path(j.ID, stateFileName), j)
}

// LoadJobState reads state.json for a job.
func (s *Store) LoadJobState(jobID string) (jobmodel.Job, error) {
	var j jobmodel.Job
	err := readJSON(s.path(jobID, stateFileName), &j)
	return j, err
}

// LoadAllJobStates scans jobs/ and loads every state.json found, tolerating
// unreadable/corrupt entries by skipping them with a warning (forward-
// compatible readers per spec.md §6.2).
func (s *Store) LoadAllJobStates() ([]jobmodel.Job, error) {
	entries, err := os.ReadDir(s.JobsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var jobs []jobmodel.Job
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		j, err := s.LoadJobState(e.Name())
		if err != nil {
			logger.Warn("store: skipping unreadable job state", "job_id", e.Name(), "error", err)
			continue
		}
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.Before(jobs[k].CreatedAt) })
	return jobs, nil
}

// SaveCheckpoint writes checkpoint.json for a job, atomically.
func (s *Store) SaveCheckpoint(jobID string, cp jobmodel.Checkpoint) error {
	if err := s.EnsureJobDir(jobID); err != nil {
		return err
	}
	return atomicWriteJSON(s.path(jobID, checkpointFileName), cp)
}

// LoadCheckpoint reads checkpoint.json for a job. Returns os.ErrNotExist
// (wrapped) if no checkpoint has been written yet.
func (s *Store) LoadCheckpoint(jobID string) (jobmodel.Checkpoint, error) {
	var cp jobmodel.Checkpoint
	err := readJSON(s.path(jobID, checkpointFileName), &cp)
	return cp, err
}

// RemoveJobDir deletes a job's working directory (cancel with
// delete_data=true, spec.md §4.E).
func (s *Store) RemoveJobDir(jobID string) error {
	return os.RemoveAll(s.JobDir(jobID))
}

// --- job_index.json: <job_id> -> absolute input path ---

type jobIndex map[string]string

func (s *Store) jobIndexPath() string { return filepath.Join(s.RootDir, jobIndexFileName) }

func (s *Store) loadJobIndexLocked() (jobIndex, error) {
	idx := jobIndex{}
	err := readJSON(s.jobIndexPath(), &idx)
	if err != nil {
		if os.IsNotExist(err) {
			return jobIndex{}, nil
		}
		return nil, err
	}
	return idx, nil
}

// SetJobIndexEntry records <job_id> -> absolute input path, atomically.
func (s *Store) SetJobIndexEntry(jobID, inputPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadJobIndexLocked()
	if err != nil {
		return err
	}
	idx[jobID] = inputPath
	return atomicWriteJSON(s.jobIndexPath(), idx)
}

// RemoveJobIndexEntry deletes a job_index.json entry, atomically.
func (s *Store) RemoveJobIndexEntry(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadJobIndexLocked()
	if err != nil {
		return err
	}
	if _, ok := idx[jobID]; !ok {
		return nil
	}
	delete(idx, jobID)
	return atomicWriteJSON(s.jobIndexPath(), idx)
}

// IntegritySweep verifies every job_index.json entry's input file and
// working directory exist, dropping (and logging) entries that don't, and
// removing jobs/<id> directories with no corresponding index entry
// (spec.md §4.A, SPEC_FULL.md §5.A).
func (s *Store) IntegritySweep() error {
	s.mu.Lock()
	idx, err := s.loadJobIndexLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	cleaned := jobIndex{}
	for jobID, inputPath := range idx {
		if _, err := os.Stat(inputPath); err != nil {
			logger.Warn("store: dropping job_index entry with missing input file", "job_id", jobID, "path", inputPath)
			continue
		}
		if _, err := os.Stat(s.JobDir(jobID)); err != nil {
			logger.Warn("store: dropping job_index entry with missing working dir", "job_id", jobID)
			continue
		}
		cleaned[jobID] = inputPath
	}
	if len(cleaned) != len(idx) {
		if err := atomicWriteJSON(s.jobIndexPath(), cleaned); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(s.JobsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := cleaned[e.Name()]; !ok {
			logger.Warn("store: removing orphaned job directory", "job_id", e.Name())
			_ = os.RemoveAll(s.JobDir(e.Name()))
		}
	}
	return nil
}

// --- profiles.json: named Settings presets ---

// SaveProfiles atomically overwrites profiles.json.
func (s *Store) SaveProfiles(profiles []jobmodel.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomicWriteJSON(filepath.Join(s.RootDir, profilesFileName), profiles)
}

// LoadProfiles reads profiles.json, returning an empty slice if absent.
func (s *Store) LoadProfiles() ([]jobmodel.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var profiles []jobmodel.Profile
	err := readJSON(filepath.Join(s.RootDir, profilesFileName), &profiles)
	if err != nil && os.IsNotExist(err) {
		return nil, nil
	}
	return profiles, err
}
