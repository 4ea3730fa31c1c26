package storage

import (
	"path/filepath"

	"github.com/cloudretro/retrohost/pkg/os"
)

type (
	// Storage keeps save-state blobs of emulation sessions.
	Storage interface {
		GetSavePath() string
		SetMainSaveName(name string)
		Load(path string) ([]byte, error)
		Save(path string, data []byte) error
	}
	StateStorage struct {
		// save path without the dir slash in the end
		Path string
		// the name of the main save file, e.g. abc<...>293.dat
		MainSave string

		lock *os.Flock
	}
)

// NewStateStorage creates a plain file store at path.
// Writes are serialized with a file lock so concurrent host processes
// can't corrupt each other's saves.
func NewStateStorage(path string) (*StateStorage, error) {
	if err := os.CheckCreateDir(path); err != nil {
		return nil, err
	}
	lock, err := os.NewFileLock(filepath.Join(path, ".lock"))
	if err != nil {
		return nil, err
	}
	return &StateStorage{Path: path, lock: lock}, nil
}

func (s *StateStorage) SetMainSaveName(name string) { s.MainSave = name }
func (s *StateStorage) GetSavePath() string         { return filepath.Join(s.Path, s.MainSave+".dat") }

func (s *StateStorage) Load(path string) ([]byte, error) { return os.ReadFile(path) }

func (s *StateStorage) Save(path string, dat []byte) error {
	if s.lock != nil {
		if err := s.lock.Lock(); err != nil {
			return err
		}
		defer func() { _ = s.lock.Unlock() }()
	}
	return os.WriteFile(path, dat, 0644)
}
