package distributed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"knight/internal/cfg"
	"knight/internal/region"
)

func fn(name string) *cfg.Function {
	return &cfg.Function{Name: name, Frame: &region.StackFrame{Function: name}, Entry: 0, Exit: 0,
		Blocks: map[cfg.BlockID]*cfg.BasicBlock{0: {ID: 0}}}
}

func TestAnalyzeAllRunsEveryFunction(t *testing.T) {
	fns := []*cfg.Function{fn("a"), fn("b"), fn("c")}
	var calls int32

	p := New(2, nil)
	results := p.AnalyzeAll(context.Background(), fns, func(ctx context.Context, f *cfg.Function) (any, error) {
		atomic.AddInt32(&calls, 1)
		return f.Name + "-summary", nil
	})

	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		want := fns[i].Name + "-summary"
		if r.Value != want || r.FunctionName != fns[i].Name || r.Err != nil {
			t.Errorf("results[%d] = %+v, want Value=%q Err=nil", i, r, want)
		}
	}
}

func TestAnalyzeAllCapturesPerJobError(t *testing.T) {
	fns := []*cfg.Function{fn("ok"), fn("bad")}
	boom := errors.New("boom")

	p := New(0, nil)
	results := p.AnalyzeAll(context.Background(), fns, func(ctx context.Context, f *cfg.Function) (any, error) {
		if f.Name == "bad" {
			return nil, boom
		}
		return "fine", nil
	})

	if results[0].Err != nil {
		t.Errorf("expected fns[0] to succeed, got err %v", results[0].Err)
	}
	if results[1].Err != boom {
		t.Errorf("expected fns[1] to carry the injected error, got %v", results[1].Err)
	}
}
