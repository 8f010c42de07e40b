package catalog

import (
	"strings"

	"github.com/go-faster/errors"
)

// Kind classifies a failed mutation for the caller.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindForbidden
	KindNotFound
	KindConflict
	KindAssetStore
	KindPersistence
	KindPublish
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAssetStore:
		return "asset_store"
	case KindPersistence:
		return "persistence"
	case KindPublish:
		return "publish"
	default:
		return "internal"
	}
}

// Error is returned by every Service operation that fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, ErrNotFound) holds
// for any *Error of KindNotFound.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrForbidden   = &Error{Kind: KindForbidden}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrAssetStore  = &Error{Kind: KindAssetStore}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrPublish     = &Error{Kind: KindPublish}
)

// Errors adapters return so the orchestrator can classify failures.
var (
	ErrNoRecord     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrStaleVersion = errors.New("record version changed")
	ErrNoAsset      = errors.New("asset not found")
	ErrInvariant    = errors.New("catalog invariant violated")
)

// PublishError reports the topics whose delivery failed, or nil.
func (r Result) PublishError() error {
	if !r.Degraded() {
		return nil
	}
	return &Error{Kind: KindPublish, Err: errors.Errorf("undelivered topics: %s", strings.Join(r.FailedTopics, ", "))}
}

// KindOf returns the kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	errNotSeller = errors.New("actor lacks the seller role")
	errNotOwner  = errors.New("actor does not own the product")
)
