// Package authz evaluates access policies over the caller's roles, site
// assignment and resource ownership. Every route and lifecycle operation goes
// through Evaluate so the rules live in one place.
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Additional-Code/procura/internal/entity"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Roles  []string  `json:"roles"`
	Site   string    `json:"site,omitempty"`
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (p *Principal) HasAnyRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, held := range p.Roles {
		for _, want := range roles {
			if held == want {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the principal bypasses site scoping.
func (p *Principal) IsAdmin() bool {
	return p.HasAnyRole(entity.RoleAdmin)
}

// Request is the subject of a policy decision.
type Request struct {
	Principal *Principal
	// Site is the site the request targets; SiteGiven is false when the caller named none.
	Site      string
	SiteGiven bool
	OwnerID   uuid.UUID
}

// Rule allows a request by returning nil or denies it with an errorbank error.
type Rule func(Request) error

// Evaluate applies rules in order. Anonymous requests are always rejected first.
func Evaluate(req Request, rules ...Rule) error {
	if req.Principal == nil {
		return errorbank.Unauthorized("authentication required")
	}
	for _, rule := range rules {
		if err := rule(req); err != nil {
			return err
		}
	}
	return nil
}

// Authenticated allows any signed-in caller.
func Authenticated() Rule {
	return func(Request) error { return nil }
}

// AnyRole allows callers holding at least one of roles.
func AnyRole(roles ...string) Rule {
	return func(req Request) error {
		if req.Principal.HasAnyRole(roles...) {
			return nil
		}
		return errorbank.Forbidden(
			fmt.Sprintf("access denied: requires one of roles [%s]", strings.Join(roles, ", ")),
			errorbank.WithDetail("required_roles", roles),
		)
	}
}

// Admin allows only administrators.
func Admin() Rule {
	return AnyRole(entity.RoleAdmin)
}

type siteOptions struct {
	allowUnscoped bool
}

// SiteOption tunes SiteMember.
type SiteOption func(*siteOptions)

// AllowUnscoped lets requests that name no site through. Routes serving
// cross-site data opt in explicitly.
func AllowUnscoped() SiteOption {
	return func(o *siteOptions) { o.allowUnscoped = true }
}

// SiteMember allows admins anywhere and other callers only on their assigned site.
func SiteMember(opts ...SiteOption) Rule {
	var o siteOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(req Request) error {
		if !req.SiteGiven {
			if o.allowUnscoped {
				return nil
			}
			return errorbank.BadRequest("site is required")
		}
		if req.Principal.IsAdmin() {
			return nil
		}
		if req.Principal.Site != "" && req.Principal.Site == req.Site {
			return nil
		}
		return errorbank.Forbidden(
			fmt.Sprintf("access denied: you are not assigned to site %q", req.Site),
			errorbank.WithDetail("site", req.Site),
		)
	}
}

// OwnerOr allows the resource owner, administrators, or holders of roles.
func OwnerOr(roles ...string) Rule {
	return func(req Request) error {
		p := req.Principal
		if p.IsAdmin() || p.HasAnyRole(roles...) {
			return nil
		}
		if req.OwnerID != uuid.Nil && p.UserID == req.OwnerID {
			return nil
		}
		return errorbank.Forbidden("access denied: only the order owner may perform this action")
	}
}

// SiteSource names where a route carries its site parameter.
// Resolution precedence is path, then query, then JSON body.
type SiteSource struct {
	PathParam  string
	QueryParam string
	BodyField  string
}

// DefaultSiteSource matches /sites/:siteName routes, ?site= and {"site": ...}.
var DefaultSiteSource = SiteSource{PathParam: "siteName", QueryParam: "site", BodyField: "site"}

// Policy is the declarative requirement attached to a route.
type Policy struct {
	rules []Rule
	site  *SiteSource
}

// Allow builds a policy from rules.
func Allow(rules ...Rule) Policy {
	return Policy{rules: rules}
}

// ScopedBy makes the policy resolve the request site from src before evaluation.
func (p Policy) ScopedBy(src SiteSource) Policy {
	p.site = &src
	return p
}

// Rules returns the policy rules.
func (p Policy) Rules() []Rule {
	return p.rules
}

// SiteSource returns the configured site source, if any.
func (p Policy) SiteSource() (SiteSource, bool) {
	if p.site == nil {
		return SiteSource{}, false
	}
	return *p.site, true
}

type principalKey struct{}

// WithPrincipal stores the caller on ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the caller stored on ctx, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
