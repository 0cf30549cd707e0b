package password

import (
	"context"
	"fmt"

	"github.com/Omoju-Mayowa/blogauth/internal/common"
)

// TryRecorder observes how many peppers a verification had to try before
// matching (or giving up). Used for metrics and by tests asserting the
// hint fast path.
type TryRecorder interface {
	ObserveVerify(tries int, matched bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveVerify(int, bool) {}

// Verifier checks submitted passwords against stored peppered hashes.
//
// Verification tries the remembered pepper version first: correct in the
// common case of no rotation since the hash was written, and it avoids a
// full scan whose cost is proportional to the number of retained peppers
// times one Argon2id derivation. Only when the hint misses (or is out of
// range) are the remaining versions scanned, which is what keeps
// credentials hashed under a since-rotated pepper verifiable.
type Verifier struct {
	peppers  PepperSource
	recorder TryRecorder
}

func NewVerifier(peppers PepperSource, recorder TryRecorder) *Verifier {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Verifier{peppers: peppers, recorder: recorder}
}

// Verify checks password against storedHash and returns the index of the
// pepper that produced the match. hintVersion is tried first when it is a
// valid index. A miss across all versions returns ErrInvalidCredentials.
//
// The scan is not constant-time across versions (timing reveals at most
// which version matched, not the password); each individual comparison is
// constant-time. The context is checked between derivations, since each
// one is deliberately expensive.
func (v *Verifier) Verify(ctx context.Context, storedHash, password string, hintVersion int) (int, error) {
	salt, key, p, err := decode(storedHash)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrInvalidCredentials, err)
	}

	peppers := v.peppers.List()
	if len(peppers) == 0 {
		return 0, fmt.Errorf("%w: pepper store is empty", common.ErrConfiguration)
	}

	prehashed := prehash(password)
	tries := 0

	hintValid := hintVersion >= 0 && hintVersion < len(peppers)
	if hintValid {
		tries++
		if matches(peppers[hintVersion], prehashed, salt, key, p) {
			v.recorder.ObserveVerify(tries, true)
			return hintVersion, nil
		}
	}

	for i := range peppers {
		if hintValid && i == hintVersion {
			continue
		}
		if err := ctx.Err(); err != nil {
			v.recorder.ObserveVerify(tries, false)
			return 0, err
		}
		tries++
		if matches(peppers[i], prehashed, salt, key, p) {
			v.recorder.ObserveVerify(tries, true)
			return i, nil
		}
	}

	v.recorder.ObserveVerify(tries, false)
	return 0, common.ErrInvalidCredentials
}
