// Package module implements the dynamic module loader and lifecycle
// manager at the heart of lbbsd: the Registry, the Dynamic Loader Backend,
// the Lifecycle Coordinator, the Dependency Tracker and the Autoload
// Orchestrator.
//
// A module is a unit of pluggable functionality - a network service
// (SMTP, IMAP, IRC, ...) or a domain feature (ChanServ, mailbox events) -
// backed either by a Go plugin (a shared object opened with the standard
// library's plugin package) or registered statically in-process. Plugin
// modules publish a Descriptor from their own constructor (a plain init()
// function in the plugin's package, run by plugin.Open as a side effect of
// loading the shared object) by calling Register on the package-level
// Registry that is currently opening them. Modules compiled into the
// binary register through Registry.RegisterStatic instead; there is no
// third registration path.
package module
