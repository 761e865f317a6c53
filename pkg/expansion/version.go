package expansion

import "fmt"

// VersionRuleMode is how a version rule binds:
// override replaces the ambient version, check enforces agreement,
// default fills in only when no version was stated.
type VersionRuleMode string

const (
	VersionDefault  VersionRuleMode = "default"
	VersionCheck    VersionRuleMode = "check"
	VersionOverride VersionRuleMode = "override"
)

// VersionRuleScope separates CodeSystem-level rules from ValueSet-level
// ones; the two sets are distinct and one never shadows the other for
// the same canonical URL.
type VersionRuleScope string

const (
	ScopeCodeSystem VersionRuleScope = "code-system"
	ScopeValueSet   VersionRuleScope = "value-set"
)

// VersionRule pins, checks, or suggests a version for one canonical URL.
type VersionRule struct {
	Scope   VersionRuleScope
	System  string // canonical URL the rule applies to
	Version string
	Mode    VersionRuleMode
}

// VersionConflictError reports a check-mode rule whose version
// disagrees with the one the compose clause (or imported ValueSet)
// actually carries.
type VersionConflictError struct {
	System string
	Want   string
	Got    string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("conflict: version rule for %q requires %q but %q was requested", e.System, e.Want, e.Got)
}

// resolveVersion applies the rules of one scope to (url, stated) and
// returns the effective version. Rules for other URLs or the other
// scope never apply.
func resolveVersion(rules []VersionRule, scope VersionRuleScope, url, stated string) (string, error) {
	for _, r := range rules {
		if r.System != url {
			continue
		}
		if r.Scope != scope && !(r.Scope == "" && scope == ScopeCodeSystem) {
			continue
		}
		switch r.Mode {
		case VersionOverride:
			return r.Version, nil
		case VersionCheck:
			if stated != "" && stated != r.Version {
				return "", &VersionConflictError{System: url, Want: r.Version, Got: stated}
			}
			return r.Version, nil
		default: // VersionDefault or unset
			if stated == "" {
				return r.Version, nil
			}
		}
	}
	return stated, nil
}
