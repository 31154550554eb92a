package pathcfg

import (
	"fmt"

	rerrors "reviewctx/internal/errors"
)

// Resolver resolves effective configuration per path. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	defaults Defaults
	rules    []Rule
}

// NewResolver validates rules and global excludes. A rule with any malformed
// glob is skipped as a whole; a malformed global exclude is dropped on its own.
// Both are reported as CONFIG_RESOLUTION diagnostics.
func NewResolver(defaults Defaults, rules []Rule) (*Resolver, []rerrors.Diagnostic) {
	var diags []rerrors.Diagnostic

	excludes := make([]string, 0, len(defaults.ExcludePatterns))
	for _, p := range defaults.ExcludePatterns {
		if !ValidPattern(p) {
			diags = append(diags, rerrors.Warn(rerrors.ConfigResolution, "",
				fmt.Sprintf("exclude pattern %q is malformed and was ignored", p)))
			continue
		}
		excludes = append(excludes, p)
	}
	defaults.ExcludePatterns = excludes

	kept := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if bad := firstInvalid(r); bad != "" {
			diags = append(diags, rerrors.Warn(rerrors.ConfigResolution, "",
				fmt.Sprintf("path rule %q skipped: malformed glob %q", r.Pattern, bad)))
			continue
		}
		kept = append(kept, r)
	}

	return &Resolver{defaults: defaults, rules: kept}, diags
}

func firstInvalid(r Rule) string {
	if !ValidPattern(r.Pattern) {
		return r.Pattern
	}
	for _, list := range [][]string{r.IgnorePatterns, r.ExtraContext} {
		for _, p := range list {
			if !ValidPattern(p) {
				return p
			}
		}
	}
	return ""
}

// Rules returns the rules that survived validation, in declaration order.
func (r *Resolver) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Resolve folds the defaults with every rule matching path, in declaration
// order. Later non-empty scalars win; lists accumulate without duplicates;
// severity overrides merge per key with later rules winning.
func (r *Resolver) Resolve(path string) Effective {
	path = Normalize(path)
	eff := Effective{
		Path:               path,
		SystemPrompt:       r.defaults.SystemPrompt,
		ReviewInstructions: r.defaults.ReviewInstructions,
	}
	severity := make(map[string]string, len(r.defaults.SeverityOverrides))
	for k, v := range r.defaults.SeverityOverrides {
		severity[k] = v
	}

	for _, rule := range r.rules {
		if !Match(rule.Pattern, path) {
			continue
		}
		eff.MatchedRules = append(eff.MatchedRules, rule.Pattern)
		eff.IgnorePatterns = appendUnique(eff.IgnorePatterns, rule.IgnorePatterns...)
		eff.ExtraContext = appendUnique(eff.ExtraContext, rule.ExtraContext...)
		eff.Focus = appendUnique(eff.Focus, rule.Focus...)
		for k, v := range rule.SeverityOverrides {
			severity[k] = v
		}
		if rule.SystemPrompt != "" {
			eff.SystemPrompt = rule.SystemPrompt
		}
		if rule.ReviewInstructions != "" {
			eff.ReviewInstructions = rule.ReviewInstructions
		}
	}
	if len(severity) > 0 {
		eff.SeverityOverrides = severity
	}

	for _, p := range r.defaults.ExcludePatterns {
		if Match(p, path) {
			eff.Excluded, eff.ExcludedBy = true, p
			return eff
		}
	}
	for _, p := range eff.IgnorePatterns {
		if Match(p, path) {
			eff.Excluded, eff.ExcludedBy = true, p
			return eff
		}
	}
	return eff
}

// IsExcluded reports whether path is excluded by a global exclude or by an
// ignore glob of any rule matching it.
func (r *Resolver) IsExcluded(path string) bool {
	return r.Resolve(path).Excluded
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		dup := false
		for _, d := range dst {
			if d == it {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, it)
		}
	}
	return dst
}
