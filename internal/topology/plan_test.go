package topology

import (
	"errors"
	"testing"

	"github.com/shaiso/tabledisco/internal/domain"
)

func TestChain_RequiresTwoStages(t *testing.T) {
	_, err := Chain(domain.IngestUnit("b", "c.csv"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("ValidationError must wrap ErrInvalidPlan")
	}

	_, err = Chain(
		domain.IngestUnit("b", "c.csv"),
		domain.ProfileUnit("b", "c.csv"),
		domain.ProfileUnit("b", "c.csv"),
	)
	if !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("expected ErrInvalidPlan for 3 stages, got %v", err)
	}
}

func TestChain_SameUnit(t *testing.T) {
	_, err := Chain(domain.IngestUnit("b", "c.csv"), domain.ProfileUnit("b", "d.csv"))
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}

	p, err := Chain(domain.IngestUnit("b", "c.csv"), domain.ProfileUnit("b", "c.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Shape() != ShapeChain || p.Size() != 2 {
		t.Errorf("unexpected plan: %s size %d", p.Shape(), p.Size())
	}
}

func TestFanOut_EmptyLeaves(t *testing.T) {
	_, err := FanOut(nil, domain.ProfileAll("b"))
	if !errors.Is(err, ErrNothingToDo) {
		t.Fatalf("expected ErrNothingToDo, got %v", err)
	}
}

func TestFanOut_ArgumentsCheckedAtBuildTime(t *testing.T) {
	leaves := []domain.Invocation{
		domain.IngestUnit("b", "a.csv"),
		domain.IngestUnit("b", ""),
	}

	_, err := FanOut(leaves, domain.ProfileAll("b"))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Index != 1 {
		t.Errorf("expected failing index 1, got %d", verr.Index)
	}
	if !errors.Is(err, domain.ErrInvalidArgs) {
		t.Errorf("expected cause ErrInvalidArgs, got %v", err)
	}
}

func TestFanOut_BadFinalize(t *testing.T) {
	_, err := FanOut([]domain.Invocation{domain.IngestUnit("b", "a.csv")}, domain.Invocation{Stage: "nope"})
	if !errors.Is(err, domain.ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}

func TestSingle_UnknownStage(t *testing.T) {
	_, err := Single(domain.Invocation{Args: domain.StageArgs{Bucket: "b"}})
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestPlan_ZeroValueInvalid(t *testing.T) {
	if err := (Plan{}).Validate(); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}
