// internal/service/voucher/infrastructure/rule/cel_prefilter.go
package rule

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"bazaar/internal/service/voucher/domain"
	"bazaar/internal/service/voucher/port"
)

// Guard 把一条 CEL 表达式和它被违反时要返回的领域错误绑在一起。
// 表达式对事实求值为 false 即视为违反。
type Guard struct {
	Name string
	Expr string
	Err  error
}

// DefaultGuards 是券应用前的内置本地守卫，对应客户端侧校验规则。
func DefaultGuards() []Guard {
	return []Guard{
		// 纯空白的券码和空券码一样没有意义，掐掉首尾空白再判空
		{Name: "non_empty_code", Expr: `code.trim().size() > 0`, Err: domain.ErrEmptyCode},
		{Name: "items_selected", Expr: `selectedCount > 0 && orderAmount > 0`, Err: domain.ErrNoItemsSelected},
	}
}

// CELPrefilter 是 port.RulePrefilter 的 CEL 实现。
// 守卫规则以表达式形式声明，运营侧可以在不改代码的情况下收紧本地校验。
type CELPrefilter struct {
	guards []compiledGuard
}

type compiledGuard struct {
	guard   Guard
	program cel.Program
}

// NewCELPrefilter 编译所有守卫表达式。任何一条编译失败都让构造失败，
// 规则语法错误应当在启动时暴露而不是在第一次应用券时。
func NewCELPrefilter(guards []Guard) (*CELPrefilter, error) {
	env, err := cel.NewEnv(
		ext.Strings(),
		cel.Variable("code", cel.StringType),
		cel.Variable("orderAmount", cel.IntType),
		cel.Variable("selectedCount", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL environment: %w", err)
	}

	compiled := make([]compiledGuard, 0, len(guards))
	for _, g := range guards {
		ast, issues := env.Compile(g.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("guard %q has invalid expression: %w", g.Name, issues.Err())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to build program for guard %q: %w", g.Name, err)
		}
		compiled = append(compiled, compiledGuard{guard: g, program: program})
	}
	return &CELPrefilter{guards: compiled}, nil
}

// Evaluate 按声明顺序执行守卫，返回第一条被违反规则的领域错误。
func (p *CELPrefilter) Evaluate(fact port.ApplyFact) error {
	input := map[string]any{
		"code":          fact.Code,
		"orderAmount":   fact.OrderAmount,
		"selectedCount": int64(fact.SelectedCount),
	}
	for _, cg := range p.guards {
		out, _, err := cg.program.Eval(input)
		if err != nil {
			return fmt.Errorf("guard %q evaluation failed: %w", cg.guard.Name, err)
		}
		passed, ok := out.Value().(bool)
		if !ok || !passed {
			return cg.guard.Err
		}
	}
	return nil
}

var _ port.RulePrefilter = (*CELPrefilter)(nil)
