package output

import (
	"context"
	"math"

	"github.com/specialistvlad/sweptgrid/internal/ctxlog"
	"gonum.org/v1/gonum/floats"
)

// Stats summarises the values of a slice.
type Stats struct {
	Min  float64
	Max  float64
	Mean float64
}

// Summarize computes Stats. An empty slice yields NaNs.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}
	}
	return Stats{
		Min:  floats.Min(values),
		Max:  floats.Max(values),
		Mean: floats.Sum(values) / float64(len(values)),
	}
}

// WriteOutRecorder counts write-outs per rank.
type WriteOutRecorder interface {
	WriteOut(rank int)
}

// Logged forwards to Next and logs a summary of every write-out.
type Logged struct {
	Next     Writer
	Recorder WriteOutRecorder
}

// WriteSlice implements Writer.
func (l Logged) WriteSlice(ctx context.Context, s Slice) error {
	if err := l.Next.WriteSlice(ctx, s); err != nil {
		return err
	}
	if l.Recorder != nil {
		l.Recorder.WriteOut(s.Rank)
	}
	st := Summarize(s.Values)
	ctxlog.FromContext(ctx).Info("Time level written.",
		"write_counter", s.WriteCounter,
		"level", s.Level,
		"rows", s.Rows,
		"min", st.Min,
		"max", st.Max,
		"mean", st.Mean,
	)
	return nil
}
