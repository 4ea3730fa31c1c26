package games

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudretro/retrohost/pkg/config"
	"github.com/cloudretro/retrohost/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

type GameLibrary interface {
	GetAll() []GameMetadata
	FindGameByName(name string) GameMetadata
	Scan()
}

type GameMetadata struct {
	Name string // the display name of the game
	Base string
	Path string // the game path relative to the library base path
	Type string // the game file extension (e.g. nes, n64)
}

func (g GameMetadata) Found() bool { return g.Path != "" }

func (g GameMetadata) FullPath() string { return filepath.Join(g.Base, g.Path) }

type library struct {
	path      string
	supported map[string]struct{}
	ignored   []string
	hasSource bool
	log       *logger.Logger

	mu    sync.Mutex
	games map[string]GameMetadata

	lastScanDuration time.Duration
}

func NewLib(conf config.Library, log *logger.Logger) GameLibrary {
	hasSource := true
	dir, err := filepath.Abs(conf.BasePath)
	if err != nil {
		hasSource = false
		log.Error().Err(err).Str("dir", conf.BasePath).Msg("Lib has invalid source")
	}

	lib := &library{
		path:      dir,
		supported: toMap(conf.Supported),
		ignored:   conf.Ignored,
		hasSource: hasSource,
		games:     map[string]GameMetadata{},
		log:       log,
	}

	if conf.WatchMode && hasSource {
		go lib.watch()
	}

	return lib
}

func (lib *library) GetAll() []GameMetadata {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	res := make([]GameMetadata, 0, len(lib.games))
	for _, meta := range lib.games {
		res = append(res, meta)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// FindGameByName returns game info with its base path set.
func (lib *library) FindGameByName(name string) GameMetadata {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if meta, ok := lib.games[name]; ok {
		meta.Base = lib.path
		return meta
	}
	return GameMetadata{}
}

func (lib *library) Scan() {
	if !lib.hasSource {
		lib.log.Info().Msg("Lib scan... skipped (no source)")
		return
	}

	start := time.Now()
	var games []GameMetadata
	err := filepath.WalkDir(lib.path, func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if info == nil || info.IsDir() || !lib.isExtAllowed(path) {
			return nil
		}

		meta := metadata(path, lib.path)
		for _, k := range lib.ignored {
			if meta.Name == k {
				return nil
			}
		}
		games = append(games, meta)
		return nil
	})
	if err != nil {
		lib.log.Error().Err(err).Str("dir", lib.path).Msg("Lib scan... failed")
		return
	}

	lib.set(games)
	lib.lastScanDuration = time.Since(start)
	lib.log.Info().Msgf("Lib scan... completed, %v games in %v", len(games), lib.lastScanDuration)
}

// watch rescans the entire library on filesystem changes
// in the watched directory.
func (lib *library) watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		lib.log.Error().Err(err).Msg("Lib watcher has failed")
		return
	}
	defer func() { _ = watcher.Close() }()

	if err = watcher.Add(lib.path); err != nil {
		lib.log.Error().Err(err).Msg("Lib watch error")
		return
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Create || event.Op == fsnotify.Remove {
				lib.Scan()
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (lib *library) set(games []GameMetadata) {
	res := make(map[string]GameMetadata, len(games))
	for _, meta := range games {
		res[meta.Name] = meta
	}
	lib.mu.Lock()
	lib.games = res
	lib.mu.Unlock()
}

func (lib *library) isExtAllowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	if len(lib.supported) == 0 {
		return true
	}
	_, ok := lib.supported[ext[1:]]
	return ok
}

// metadata returns game info from a path
func metadata(path string, basePath string) GameMetadata {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	relPath, _ := filepath.Rel(basePath, path)

	return GameMetadata{
		Name: strings.TrimSuffix(name, ext),
		Type: strings.ToLower(strings.TrimPrefix(ext, ".")),
		Path: relPath,
	}
}

func toMap(list []string) map[string]struct{} {
	res := make(map[string]struct{}, len(list))
	for _, s := range list {
		res[strings.ToLower(s)] = struct{}{}
	}
	return res
}
