package priors

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Store memoizes prior box sets per configuration name.
//
// Each name gets its own lazily initialized cell; the first caller builds the set and
// every later (or concurrent) caller receives the same *Set. Sets are immutable, so the
// returned pointer may be shared freely. The zero value is ready to use and logs to the
// logrus standard logger.
type Store struct {
	log   logrus.FieldLogger
	mu    sync.Mutex
	cells map[Name]*cell
}

type cell struct {
	once sync.Once
	set  *Set
	err  error
}

// NewStore creates an empty store. A nil logger falls back to the logrus standard logger.
func NewStore(log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{log: log, cells: make(map[Name]*cell)}
}

// Default is the process-wide store used by Get.
var Default = NewStore(nil)

// Get returns the cached set for name from the Default store.
func Get(name Name) (*Set, error) {
	return Default.Get(name)
}

// Get returns the set for name, generating it on first use.
func (s *Store) Get(name Name) (*Set, error) {
	if _, err := Lookup(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.cells == nil {
		s.cells = make(map[Name]*cell)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	log := s.log
	c, ok := s.cells[name]
	if !ok {
		c = &cell{}
		s.cells[name] = c
	}
	s.mu.Unlock()

	c.once.Do(func() {
		c.set, c.err = Create(name)
		if c.err == nil {
			log.WithFields(logrus.Fields{
				"config":  string(name),
				"anchors": c.set.Len(),
			}).Debug("built prior boxes")
		}
	})
	return c.set, c.err
}
