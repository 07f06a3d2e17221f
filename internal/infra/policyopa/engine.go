package policyopa

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"recordproof/internal/domain"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const allowQuery = "data.recordproof.authz.allow"

//go:embed default.rego
var defaultPolicy string

type Engine struct {
	query  rego.PreparedEvalQuery
	source string
}

// NewEngine prepares the authorization policy. An empty path selects the
// embedded default policy; otherwise path is a rego file or directory.
func NewEngine(ctx context.Context, path string) (*Engine, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	opts := []func(*rego.Rego){
		rego.Query(allowQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
	}
	source := "embedded"
	if path == "" {
		opts = append(opts, rego.Module("default.rego", defaultPolicy))
	} else {
		opts = append(opts, rego.Load([]string{path}, nil))
		source = path
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy %s: %w", source, err)
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{query: prepared, source: source}, nil
}

func (e *Engine) Source() string {
	return e.source
}

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyDecision, error) {
	if e == nil {
		return domain.PolicyDecision{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyDecision{}, err
	}
	// An undefined allow rule is a deny.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyDecision{Allow: false, Reason: "policy undefined for " + input.Action}, nil
	}
	allow, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return domain.PolicyDecision{}, fmt.Errorf("policy result for %s is not a boolean", input.Action)
	}
	decision := domain.PolicyDecision{Allow: allow}
	if !allow {
		decision.Reason = fmt.Sprintf("role %q may not perform %s", input.Role, input.Action)
	}
	return decision, nil
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if _, ok := allowedBuiltins[name]; ok {
				return false
			}
			forbidden[name] = struct{}{}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}
