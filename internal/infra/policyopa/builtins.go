package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins is everything an issuance bundle may call. Nothing here reads
// the network or the clock.
var allowedBuiltins = map[string]struct{}{
	"assign":      {},
	"concat":      {},
	"contains":    {},
	"count":       {},
	"endswith":    {},
	"eq":          {},
	"equal":       {},
	"format_int":  {},
	"gt":          {},
	"gte":         {},
	"lower":       {},
	"lt":          {},
	"lte":         {},
	"neq":         {},
	"object.get":  {},
	"regex.match": {},
	"sort":        {},
	"split":       {},
	"sprintf":     {},
	"startswith":  {},
	"substring":   {},
	"trim":        {},
	"trim_space":  {},
	"upper":       {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(allowedBuiltins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; ok {
			allowed = append(allowed, builtin)
		}
	}
	return allowed
}
