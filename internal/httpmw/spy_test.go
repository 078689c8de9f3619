package httpmw

import (
	"context"
	"sync"

	"github.com/keithlinneman/nadi-go/internal/log"
)

// spyLogger records Info and Error calls; With returns a child sharing
// the same record so enrichment can be asserted.
type spyLogger struct {
	log.Logger
	mu     *sync.Mutex
	fields []any
	rec    *spyRecord
}

type spyRecord struct {
	infos  []spyEntry
	errors []spyEntry
}

type spyEntry struct {
	msg    string
	err    error
	fields []any
	kv     []any
}

func newSpyLogger() *spyLogger {
	return &spyLogger{Logger: log.Nop(), mu: &sync.Mutex{}, rec: &spyRecord{}}
}

func (s *spyLogger) With(kv ...any) log.Logger {
	fields := append(append([]any{}, s.fields...), kv...)
	return &spyLogger{Logger: s.Logger, mu: s.mu, fields: fields, rec: s.rec}
}

func (s *spyLogger) Info(ctx context.Context, msg string, kv ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.infos = append(s.rec.infos, spyEntry{msg: msg, fields: s.fields, kv: kv})
}

func (s *spyLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.errors = append(s.rec.errors, spyEntry{msg: msg, err: err, fields: s.fields, kv: kv})
}

func (s *spyLogger) infos() []spyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]spyEntry(nil), s.rec.infos...)
}

func (s *spyLogger) errs() []spyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]spyEntry(nil), s.rec.errors...)
}

// field returns the value following key in kv, or nil.
func field(kv []any, key string) any {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, _ := kv[i].(string); k == key {
			return kv[i+1]
		}
	}
	return nil
}
