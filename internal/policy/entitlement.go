package policy

import "icomnet.org/internal/identity"

// Disabled-module reasons. Exactly one applies per disabled module; the
// gates below emit the first failing one.
const (
	ReasonModuleDisabled         = "MODULE_DISABLED"
	ReasonNetworkPolicy          = "NETWORK_POLICY"
	ReasonNotInRestrictedNetwork = "NOT_IN_RESTRICTED_NETWORK"
	ReasonRealmNotAllowed        = "REALM_NOT_ALLOWED"
)

// EffectiveModule is the derived enabled/disabled status of one module. It is
// recomputed from the principal and network on every call, never persisted.
type EffectiveModule struct {
	Name           identity.Module `json:"name"`
	Enabled        bool            `json:"enabled"`
	DisabledReason string          `json:"disabled_reason,omitempty"`
}

// moduleRestriction pins a module to one network type and a realm allowlist.
type moduleRestriction struct {
	Network identity.NetworkType
	Realms  []identity.Realm
}

// Administrative correspondence is a government-network product reserved for
// government and business principals.
var moduleRestrictions = map[identity.Module]moduleRestriction{
	identity.ModuleICorrespondance: {
		Network: identity.NetworkGovernment,
		Realms:  []identity.Realm{identity.RealmGovernment, identity.RealmBusiness},
	},
}

// EffectiveModules computes the module availability for a principal on a
// network. The result is total: every known module comes back either enabled
// or with exactly one disabled reason. Gate order is fixed: desired state,
// network module policy, restricted network type, allowed realms.
func EffectiveModules(p identity.Principal, network identity.Network) []EffectiveModule {
	out := make([]EffectiveModule, 0, len(identity.Modules))
	for _, m := range identity.Modules {
		out = append(out, resolveModule(m, p, network))
	}
	return out
}

func resolveModule(m identity.Module, p identity.Principal, network identity.Network) EffectiveModule {
	if !p.DesiredModules[m] {
		return EffectiveModule{Name: m, DisabledReason: ReasonModuleDisabled}
	}
	if !network.AllowsModule(m) {
		return EffectiveModule{Name: m, DisabledReason: ReasonNetworkPolicy}
	}
	if restriction, ok := moduleRestrictions[m]; ok {
		if network.Type != restriction.Network {
			return EffectiveModule{Name: m, DisabledReason: ReasonNotInRestrictedNetwork}
		}
		if !realmAllowed(p.Realm, restriction.Realms) {
			return EffectiveModule{Name: m, DisabledReason: ReasonRealmNotAllowed}
		}
	}
	return EffectiveModule{Name: m, Enabled: true}
}

func realmAllowed(r identity.Realm, allowed []identity.Realm) bool {
	for _, a := range allowed {
		if a == r {
			return true
		}
	}
	return false
}
