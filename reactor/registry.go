// File: reactor/registry.go
// Author: momentics <momentics@gmail.com>
//
// Token <-> descriptor table shared by all backends.

package reactor

import "github.com/momentics/hioload-dcp/api"

// fdIdent identifies the open file behind a descriptor number. The zero
// value means "not recorded".
type fdIdent struct {
	dev uint64
	ino uint64
}

type registration struct {
	fd       uintptr
	interest api.Interest
	ident    fdIdent
}

// registry owns the Token->fd arena of one reactor. Tokens are reserved with
// peek and only consumed by commit, so a failed OS call leaves no trace.
//
// Descriptor numbers are recycled by the OS. When a closed descriptor's
// number is registered again, the older token stays in byTok but loses its
// byFd binding; it is stale from then on and only Deregister accepts it.
type registry struct {
	last  api.Token
	byTok map[api.Token]registration
	byFd  map[uintptr]api.Token
}

func newRegistry() *registry {
	return &registry{
		byTok: make(map[api.Token]registration),
		byFd:  make(map[uintptr]api.Token),
	}
}

// peek returns the token the next commit will use.
func (r *registry) peek() api.Token { return r.last + 1 }

// commit binds tok to fd. A token previously bound to the same descriptor
// number is returned and becomes stale.
func (r *registry) commit(tok api.Token, fd uintptr, interest api.Interest) (api.Token, bool) {
	return r.commitIdent(tok, fd, interest, fdIdent{})
}

func (r *registry) commitIdent(tok api.Token, fd uintptr, interest api.Interest, ident fdIdent) (api.Token, bool) {
	prev, displaced := r.byFd[fd]
	r.last = tok
	r.byTok[tok] = registration{fd: fd, interest: interest, ident: ident}
	r.byFd[fd] = tok
	return prev, displaced && prev != tok
}

func (r *registry) lookup(tok api.Token) (registration, bool) {
	reg, ok := r.byTok[tok]
	return reg, ok
}

// current reports whether tok still owns its descriptor number.
func (r *registry) current(tok api.Token) bool {
	reg, ok := r.byTok[tok]
	return ok && r.byFd[reg.fd] == tok
}

// tokenOf returns the token currently bound to fd.
func (r *registry) tokenOf(fd uintptr) (api.Token, bool) {
	tok, ok := r.byFd[fd]
	return tok, ok
}

func (r *registry) setInterest(tok api.Token, interest api.Interest) {
	if reg, ok := r.byTok[tok]; ok {
		reg.interest = interest
		r.byTok[tok] = reg
	}
}

func (r *registry) remove(tok api.Token) {
	reg, ok := r.byTok[tok]
	if !ok {
		return
	}
	delete(r.byTok, tok)
	if r.byFd[reg.fd] == tok {
		delete(r.byFd, reg.fd)
	}
}

func (r *registry) len() int { return len(r.byTok) }

func notFound(op string, tok api.Token) error {
	return api.WrapError(api.ErrCodeNotFound, op, nil).WithContext("token", uint64(tok))
}

// staleToken is returned by Modify for a token whose descriptor number was
// closed and registered again under a newer token.
func staleToken(op string, tok api.Token, fd uintptr) error {
	return api.WrapError(api.ErrCodeNotFound, op, nil).
		WithContext("token", uint64(tok)).
		WithContext("fd", fd).
		WithContext("reason", "descriptor reused")
}

func alreadyRegistered(op string, fd uintptr, tok api.Token, cause error) error {
	return api.WrapError(api.ErrCodeInvalidArgument, op, cause).
		WithContext("fd", fd).
		WithContext("registered_as", uint64(tok))
}
