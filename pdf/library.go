package pdf

import (
	"context"

	"github.com/pdflume/pdflume/engine"
	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/mem"
	"github.com/pdflume/pdflume/resource"
)

// Library is the top-level engine handle. It owns the engine library
// lifetime and every Document opened through it.
type Library struct {
	resource.Base
	exports engine.Exports
	arena   *mem.Arena
	engine  *engine.Engine // owned when built via Open
}

// Open instantiates the engine binary and initializes the library.
func Open(ctx context.Context, cfg engine.Config) (*Library, error) {
	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	lib, err := NewLibrary(ctx, eng, eng.Arena())
	if err != nil {
		eng.Close(ctx)
		return nil, err
	}
	lib.engine = eng
	return lib, nil
}

// NewLibrary initializes the engine library over an existing export
// surface. The caller retains ownership of the engine instance itself.
func NewLibrary(ctx context.Context, exports engine.Exports, arena *mem.Arena) (*Library, error) {
	if exports == nil {
		return nil, errors.NotInitialized(errors.PhaseDocument, "engine exports")
	}
	if arena == nil {
		return nil, errors.NotInitialized(errors.PhaseDocument, "arena")
	}

	if err := exports.InitLibrary(ctx); err != nil {
		return nil, err
	}

	lib := &Library{exports: exports, arena: arena}
	resource.Track(lib, &lib.Base, "library")
	return lib, nil
}

// Arena returns the allocator backing this library's engine instance.
func (l *Library) Arena() *mem.Arena {
	return l.arena
}

// OpenDocument loads a document from bytes. The data is copied into engine
// memory and kept alive until the Document is disposed; the caller's slice
// remains untouched and may be reused.
func (l *Library) OpenDocument(ctx context.Context, data []byte, password string) (*Document, error) {
	if err := l.EnsureActive(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.InvalidInput(errors.PhaseDocument, "empty document data")
	}

	dataPtr, err := l.arena.CopyIn(data)
	if err != nil {
		return nil, err
	}

	var passwordPtr uint32
	if password != "" {
		passwordPtr, err = l.arena.CopyIn(append([]byte(password), 0))
		if err != nil {
			l.arena.Free(dataPtr)
			return nil, err
		}
	}

	h, err := l.exports.LoadMemDocument(ctx, dataPtr, len(data), passwordPtr)
	if passwordPtr != 0 {
		l.arena.Free(passwordPtr)
	}
	if err != nil {
		l.arena.Free(dataPtr)
		return nil, err
	}
	if h.IsNull() {
		lastErr, _ := l.exports.LastError(ctx)
		l.arena.Free(dataPtr)
		return nil, errors.HandleInvalid("open document", lastErr)
	}

	doc := &Document{lib: l, h: h, dataPtr: dataPtr}
	resource.Track(doc, &doc.Base, "document")
	l.Adopt(doc)
	return doc, nil
}

// Dispose closes every document opened through this library, destroys the
// engine library and, when the library owns the engine instance, tears the
// instance down too. Idempotent.
func (l *Library) Dispose() error {
	return l.Base.Dispose(func() error {
		ctx := context.Background()
		err := l.exports.DestroyLibrary(ctx)
		if l.engine != nil {
			if closeErr := l.engine.Close(ctx); err == nil {
				err = closeErr
			}
		}
		return err
	})
}
