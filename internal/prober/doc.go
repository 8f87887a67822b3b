// Package prober inspects a tenant's PBX schema before each stage runs, per
// spec §4.4. PBX installations vary across versions and vendors, so the
// prober probes information_schema for a known candidate set of views and
// tables and lets each stage pick the highest-priority source that exists.
package prober
