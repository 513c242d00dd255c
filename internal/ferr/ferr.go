// Package ferr defines the error kinds the pipeline can raise and a small
// wrapping helper so callers can test for a kind with AsKind.
package ferr

import "github.com/pkg/errors"

// Kind classifies a pipeline failure. See spec §7.
type Kind string

const (
	EAlign            Kind = "E_ALIGN"
	ESingularCovar    Kind = "E_SINGULAR_COVAR"
	EHESingular       Kind = "E_HE_SINGULAR"
	EVgNotSignificant Kind = "E_VG_NOT_SIGNIFICANT"
	EVinvFactor       Kind = "E_VINV_FACTOR"
	EVinvConverge     Kind = "E_VINV_CONVERGE"
	EInvIDMismatch    Kind = "E_INV_ID_MISMATCH"
	EIO               Kind = "E_IO"
)

// Error carries a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.msg + ": " + e.Err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind with no wrapped cause. Kind is not
// itself an error value, so callers test for it with AsKind rather than
// errors.Is.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, Err: errors.WithStack(err)}
}

// AsKind reports whether err (or a cause in its chain) is a *Error of kind k.
func AsKind(err error, k Kind) bool {
	var fe *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			fe = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return fe != nil && fe.Kind == k
}
