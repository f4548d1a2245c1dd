package orchestrator

import (
	"github.com/mcdev12/timing/go/internal/countdown"
	"github.com/mcdev12/timing/go/internal/resolver"
)

func asOverride(text string, ok bool) resolver.Override {
	if !ok {
		return resolver.Override{}
	}
	return resolver.Active(text)
}

// ResolveStatus answers the discovery hook: the status text to advertise, if any.
func (o *Orchestrator) ResolveStatus() (string, bool) {
	return resolver.ResolveStatus(resolver.StatusInput{
		Beginning:      asOverride(o.timers[countdown.KindBeginning].StatusOverride()),
		Restart:        asOverride(o.timers[countdown.KindRestart].StatusOverride()),
		End:            asOverride(o.timers[countdown.KindEnd].StatusOverride()),
		Started:        o.phase.Started(),
		DefaultEnabled: o.cfg.DefaultStatusEnabled,
		Default:        o.cfg.DefaultStatus,
	})
}

// ResolveAdmission answers the connection hook for id.
func (o *Orchestrator) ResolveAdmission(id resolver.Identity) resolver.Decision {
	return resolver.ResolveAdmission(resolver.AdmissionInput{
		Beginning: asOverride(o.timers[countdown.KindBeginning].AdmissionMessage()),
		Restart:   asOverride(o.timers[countdown.KindRestart].AdmissionMessage()),
	}, id, o.privileges)
}
