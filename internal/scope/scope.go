package scope

import "strings"

// Scope is a structured authorization grant. Grammar:
//
//	*                  all resources, all actions
//	resource           bare resource grant
//	resource:action    one action on one resource
//	resource:*         all actions on one resource
//
// Resources may themselves contain colons (icom:chat), so the action is the
// last segment and the resource is everything before it.
type Scope struct {
	Resource string
	Action   string
	Wildcard bool
	Global   bool
}

// Parse converts a raw scope string into its structured form.
func Parse(raw string) Scope {
	raw = strings.TrimSpace(raw)
	if raw == "*" {
		return Scope{Global: true}
	}
	idx := strings.LastIndex(raw, ":")
	if idx < 0 {
		return Scope{Resource: raw}
	}
	s := Scope{Resource: raw[:idx], Action: raw[idx+1:]}
	if s.Action == "*" {
		s.Wildcard = true
	}
	return s
}

// String renders the scope back to its wire form.
func (s Scope) String() string {
	if s.Global {
		return "*"
	}
	if s.Action == "" {
		return s.Resource
	}
	return s.Resource + ":" + s.Action
}

// Covers reports whether this granted scope satisfies the required one.
// A wildcard grant covers its own resource and every nested resource under
// it: icom:* covers icom:chat and icom:chat:write.
func (s Scope) Covers(required Scope) bool {
	if s.Global {
		return true
	}
	if s.Wildcard {
		if required.Resource == s.Resource {
			return true
		}
		return strings.HasPrefix(required.String(), s.Resource+":")
	}
	return s.Resource == required.Resource && s.Action == required.Action
}

// Has reports whether any of the granted scope strings satisfies required.
func Has(granted []string, required string) bool {
	req := Parse(required)
	for _, g := range granted {
		if Parse(g).Covers(req) {
			return true
		}
	}
	return false
}

// HasAll reports whether every required scope is satisfied.
func HasAll(granted []string, required ...string) bool {
	for _, r := range required {
		if !Has(granted, r) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one required scope is satisfied.
func HasAny(granted []string, required ...string) bool {
	for _, r := range required {
		if Has(granted, r) {
			return true
		}
	}
	return false
}

// Missing returns the required scopes not satisfied by the grants, in input
// order.
func Missing(granted []string, required ...string) []string {
	var missing []string
	for _, r := range required {
		if !Has(granted, r) {
			missing = append(missing, r)
		}
	}
	return missing
}
