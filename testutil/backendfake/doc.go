// Package backendfake provides spy-able fakes of the backend capabilities expected by package realtime.
//
// ReferenceSpy records On/Off calls and lets tests fire notifications with Trigger.
// ClientSpy records Ref lookups. GatedClientGetter holds the resolution chain open until Release,
// which makes "unsubscribe before resolution" deterministic.
package backendfake
