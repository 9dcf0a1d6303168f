package sandbox

import (
	"context"
	"errors"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
)

// HandlerFunc is the signature every capability implementation compiles
// to. The facade is the implementation's entire world: no raw database,
// no process access, no code loading.
type HandlerFunc func(ctx context.Context, db *Facade, args map[string]any) (any, error)

// Run executes a capability implementation inside the sandbox. Failures
// raised by the implementation, including panics, are caught and rewrapped
// with the capability name and caller context; structured taxonomy errors
// pass through with their kind intact.
func Run(ctx context.Context, capName string, handler HandlerFunc, facade *Facade, args map[string]any) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			caller := facade.Caller()
			err = caperr.Executionf("capability %q panicked for caller %d (role %s): %v",
				capName, caller.ID, caller.Role, p)
			result = nil
		}
	}()

	result, err = handler(ctx, facade, args)
	if err != nil {
		var ce *caperr.Error
		if errors.As(err, &ce) {
			return nil, err
		}
		caller := facade.Caller()
		return nil, caperr.Wrap(caperr.KindExecution, err,
			"capability %q failed for caller %d (role %s)", capName, caller.ID, caller.Role)
	}
	return result, nil
}
