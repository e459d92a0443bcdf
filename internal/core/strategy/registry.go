package strategy

import "github.com/nbapaper/engine/internal/core/errs"

// NewByKind constructs a Strategy of the given kind with the given
// config, replacing the source's dynamic class-based registry (spec.md
// §9) with a fixed set of constructors. cfg must be the kind's own
// config type (as returned by DefaultConfigFor); a mismatched type is
// rejected rather than silently coerced.
func NewByKind(kind, id string, cfg any) (Strategy, error) {
	switch kind {
	case KindSharpLine:
		c, ok := cfg.(SharpLineConfig)
		if !ok {
			return nil, badConfig(kind)
		}
		return NewSharpLine(id, c), nil
	case KindMomentum:
		c, ok := cfg.(MomentumConfig)
		if !ok {
			return nil, badConfig(kind)
		}
		return NewMomentum(id, c), nil
	case KindEvMultiBook:
		c, ok := cfg.(EvMultiBookConfig)
		if !ok {
			return nil, badConfig(kind)
		}
		return NewEvMultiBook(id, c), nil
	case KindMeanReversion:
		c, ok := cfg.(MeanReversionConfig)
		if !ok {
			return nil, badConfig(kind)
		}
		return NewMeanReversion(id, c), nil
	case KindCorrelation:
		c, ok := cfg.(CorrelationConfig)
		if !ok {
			return nil, badConfig(kind)
		}
		return NewCorrelation(id, c), nil
	default:
		return nil, errs.New(errs.InvariantViolation, "unknown strategy kind: "+kind)
	}
}

func badConfig(kind string) error {
	return errs.New(errs.InvariantViolation, "config type does not match strategy kind: "+kind)
}

// Kinds lists every known strategy kind, in a stable order.
func Kinds() []string {
	return []string{KindSharpLine, KindMomentum, KindEvMultiBook, KindMeanReversion, KindCorrelation}
}
