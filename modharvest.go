// Package modharvest provides a resumable harvester for hierarchical course
// content (sections containing modules) served by a browser-rendered web
// application. It walks a fixed, flattened node order, extracts normalized
// text from each module page, and checkpoints progress so an interrupted
// run resumes where it stopped.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., rod/, goquery/, sqlite/).
package modharvest
