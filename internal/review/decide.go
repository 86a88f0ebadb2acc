package review

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/renderinc/review-queue/internal/normalize"
	"github.com/renderinc/review-queue/internal/record"
)

// Result is the outcome of a decision. AlreadyDecided results are
// successes carrying the verdict recorded earlier.
type Result struct {
	Verdict        record.Verdict
	AlreadyDecided bool
	Derived        normalize.Record
	DerivedID      int64
}

// Message is the client-facing note for an idempotent replay.
func (r *Result) Message() string {
	if r.AlreadyDecided {
		return fmt.Sprintf("already decided: %s", r.Verdict)
	}
	return ""
}

// ParseID validates a caller-supplied source identifier.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidIdentifier
	}
	return id, nil
}

// FormatID renders a source identifier for clients.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Decide records verdict on the source identified by rawID.
//
// A source is decided at most once. Replays and conflicting verdicts return
// the stored verdict with AlreadyDecided set. On accept the source is
// normalized first; a normalization failure leaves the source undecided.
// The derived insert and the marker are committed together, guarded by a
// compare-and-set on the unset marker, so concurrent calls for one id yield
// a single derived record.
func (s *Service) Decide(ctx context.Context, rawID string, verdict record.Verdict) (*Result, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	if !verdict.Valid() {
		return nil, fmt.Errorf("invalid verdict %q", verdict)
	}

	src, err := s.store.FindSource(ctx, id)
	if err != nil {
		return nil, s.storeFailure("find source", id, err)
	}
	if src == nil {
		return nil, ErrNotFound
	}
	if src.Decided() {
		return s.replay(src), nil
	}

	var derived normalize.Record
	if verdict == record.Accept {
		derived, err = s.policy.Normalize(src)
		if err != nil {
			return nil, s.normalizeFailure(id, err)
		}
	}

	commit, err := s.store.CommitDecision(ctx, id, verdict, s.now().UTC(), derived)
	if err != nil {
		return nil, s.storeFailure("commit decision", id, err)
	}
	if !commit.Applied {
		// Lost the race to another decision, or the source vanished.
		if commit.Current == nil {
			return nil, ErrNotFound
		}
		return s.replay(commit.Current), nil
	}

	s.logger.Info("Decision recorded",
		zap.Int64("source_id", id),
		zap.String("verdict", string(verdict)),
		zap.String("policy", s.policy.Name()))
	if s.observer != nil {
		s.observer.Decided(verdict, false)
	}

	if derived != nil && s.indexer != nil {
		if err := s.indexer.IndexRecord(commit.DerivedID, id, derived); err != nil {
			// The index is rebuilt from storage; the decision stands.
			s.logger.Warn("Index derived record failed",
				zap.Int64("derived_id", commit.DerivedID), zap.Error(err))
		}
	}

	return &Result{Verdict: verdict, Derived: derived, DerivedID: commit.DerivedID}, nil
}

func (s *Service) replay(src *record.Source) *Result {
	s.logger.Info("Decision replayed",
		zap.Int64("source_id", src.ID),
		zap.String("verdict", string(src.Decision)),
		zap.Bool("already_decided", true))
	if s.observer != nil {
		s.observer.Decided(src.Decision, true)
	}
	return &Result{Verdict: src.Decision, AlreadyDecided: true}
}

func (s *Service) normalizeFailure(id int64, err error) error {
	field := ""
	var mfe *normalize.MissingFieldError
	if errors.As(err, &mfe) {
		field = mfe.Field
	}
	s.logger.Warn("Normalize failed",
		zap.Int64("source_id", id),
		zap.String("field", field),
		zap.Error(err))
	if s.observer != nil {
		s.observer.NormalizeFailed(field)
	}
	return &normalizeError{cause: err}
}

func (s *Service) storeFailure(op string, id int64, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error("Store call failed",
		zap.String("op", op),
		zap.Int64("source_id", id),
		zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
