package topology

import (
	"fmt"

	"github.com/shaiso/tabledisco/internal/domain"
)

// ChainLength — число стадий в цепочке: ingest, затем profile.
const ChainLength = 2

// Shape — форма плана.
type Shape int

const (
	ShapeSingle Shape = iota + 1
	ShapeChain
	ShapeFanOut
)

func (s Shape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapeChain:
		return "chain"
	case ShapeFanOut:
		return "fan-out"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Plan — описание графа jobs до отправки в backend. Ничего не исполняет.
type Plan struct {
	shape    Shape
	stages   []domain.Invocation
	leaves   []domain.Invocation
	finalize domain.Invocation
}

// Single строит план из одного вызова.
func Single(inv domain.Invocation) (Plan, error) {
	p := Plan{shape: ShapeSingle, stages: []domain.Invocation{inv}}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Chain строит последовательность стадий над одной таблицей.
// Следующая стадия стартует только после успеха предыдущей.
func Chain(stages ...domain.Invocation) (Plan, error) {
	p := Plan{shape: ShapeChain, stages: append([]domain.Invocation(nil), stages...)}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// FanOut строит N независимых листов и finalize, который становится
// доступен после успеха всех листов. Пустой набор листов — ErrNothingToDo.
func FanOut(leaves []domain.Invocation, finalize domain.Invocation) (Plan, error) {
	if len(leaves) == 0 {
		return Plan{}, ErrNothingToDo
	}
	p := Plan{
		shape:    ShapeFanOut,
		leaves:   append([]domain.Invocation(nil), leaves...),
		finalize: finalize,
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Shape возвращает форму плана.
func (p Plan) Shape() Shape { return p.shape }

// Leaves возвращает листы fan-out плана.
func (p Plan) Leaves() []domain.Invocation { return p.leaves }

// Stages возвращает стадии single или chain плана.
func (p Plan) Stages() []domain.Invocation { return p.stages }

// Size — число jobs, которое создаст план.
func (p Plan) Size() int {
	if p.shape == ShapeFanOut {
		return len(p.leaves) + 1
	}
	return len(p.stages)
}

// Validate проверяет форму плана и каждый вызов.
func (p Plan) Validate() error {
	switch p.shape {
	case ShapeSingle:
		if len(p.stages) != 1 {
			return &ValidationError{Index: -1, Message: "single plan needs exactly one invocation"}
		}
		return validateAll(p.stages)

	case ShapeChain:
		if len(p.stages) != ChainLength {
			return &ValidationError{
				Index:   -1,
				Message: fmt.Sprintf("chain needs exactly %d stages, got %d", ChainLength, len(p.stages)),
			}
		}
		if err := validateAll(p.stages); err != nil {
			return err
		}
		first := p.stages[0].Args
		for i, inv := range p.stages[1:] {
			if inv.Args != first {
				return &ValidationError{Index: i + 1, Message: "chain stages must target the same unit"}
			}
		}
		return nil

	case ShapeFanOut:
		if len(p.leaves) == 0 {
			return ErrNothingToDo
		}
		if err := validateAll(p.leaves); err != nil {
			return err
		}
		if err := p.finalize.Validate(); err != nil {
			return &ValidationError{Index: len(p.leaves), Message: "finalize: " + err.Error(), Err: err}
		}
		return nil

	default:
		return &ValidationError{Index: -1, Message: "unknown plan shape " + p.shape.String()}
	}
}

func validateAll(invs []domain.Invocation) error {
	for i, inv := range invs {
		if err := inv.Validate(); err != nil {
			return invalid(i, err)
		}
	}
	return nil
}
