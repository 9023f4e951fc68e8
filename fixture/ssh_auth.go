package fixture

import "github.com/rwool/gkfix/fixture/internal/sshtarget"

// auths returns the native client's authentication methods for t: the
// password prompt first, plain password authentication as the fallback.
func (f *Fixture) auths(t Target) []sshtarget.Authorizer {
	return []sshtarget.Authorizer{
		sshtarget.NewPromptAuth(f.logger, f.opts.Prompt, t.Password),
		sshtarget.NewPasswordAuth(t.Password),
	}
}
