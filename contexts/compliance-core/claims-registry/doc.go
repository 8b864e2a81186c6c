// Package claimsregistry implements the Meridian compliance registry.
//
// The module owns per-wallet eligibility claims and evaluates transfer
// admission under Reg D / Reg S partition rules. It exposes HTTP command and
// query handlers plus a worker entrypoint for claims expiry auditing.
package claimsregistry
